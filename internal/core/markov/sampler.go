package markov

import (
	"maps"
	"slices"

	"github.com/zeusync/markov/internal/core/brain"
)

// WeightedChoice picks a follower with probability count/total. It draws an
// integer in [1, total] and walks the followers in sorted order until the
// running sum reaches it. ok is false when followers is empty.
func WeightedChoice(followers brain.Followers, src Source) (word string, ok bool) {
	total := followers.Total()
	if total < 1 {
		return "", false
	}

	draw := src.IntN(total) + 1
	sum := 0
	for _, w := range slices.Sorted(maps.Keys(followers)) {
		sum += followers[w]
		if sum >= draw {
			return w, true
		}
	}
	// unreachable while every count is positive
	return "", false
}
