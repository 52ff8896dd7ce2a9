package server

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"

	"github.com/zeusync/markov/internal/config"
	"github.com/zeusync/markov/internal/core/markov"
	"github.com/zeusync/markov/internal/core/observability/log"
)

var (
	rateCommand = regexp.MustCompile(`(?i)!rate`)
	rateArg     = regexp.MustCompile(`^[0-9]*(\.[0-9]+)?%?`)
)

// Bot decides what to do with a chat message: run a command, learn from it,
// and maybe answer it.
type Bot struct {
	backend markov.Backend
	cfg     *config.Config

	name    string
	mention *regexp.Regexp

	random func() float64
	logger log.Log
}

type BotOption func(*Bot)

// WithChance replaces the source deciding unprompted replies.
func WithChance(random func() float64) BotOption {
	return func(b *Bot) {
		b.random = random
	}
}

func NewBot(backend markov.Backend, cfg *config.Config, logger log.Log, opts ...BotOption) *Bot {
	b := &Bot{
		backend: backend,
		cfg:     cfg,
		name:    cfg.DisplayName,
		mention: regexp.MustCompile(`(?i) *` + regexp.QuoteMeta(cfg.DisplayName) + ` *`),
		random:  rand.Float64,
		logger:  logger.With(log.String("component", "bot")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name is the display name the bot answers to.
func (b *Bot) Name() string {
	return b.name
}

// Handle processes message sent by sender in room and returns the bot's answer.
// ok is false when the bot stays silent. Messages from the bot itself are ignored.
func (b *Bot) Handle(room, sender, message string) (reply string, ok bool, err error) {
	if strings.EqualFold(sender, b.name) {
		return "", false, nil
	}

	if loc := rateCommand.FindStringIndex(message); loc != nil && (loc[0] == 0 || b.isMentioned(message)) {
		args := strings.Split(message[loc[0]:], " ")
		return b.rate(room, args[1:]), true, nil
	}

	if b.isMentioned(message) || b.random() < b.cfg.ResponseRate(room) {
		reply, err = b.backend.Reply(b.stripName(message))
		if err != nil {
			return "", false, fmt.Errorf("reply: %w", err)
		}
		ok = reply != ""
		b.logger.Debug("Reply", log.String("room", room), log.String("reply", reply))
	}

	if b.cfg.Learning {
		if err := b.backend.Learn(message); err != nil {
			return reply, ok, fmt.Errorf("learn: %w", err)
		}
	}
	return reply, ok, nil
}

func (b *Bot) isMentioned(message string) bool {
	return strings.Contains(strings.ToLower(message), strings.ToLower(b.name))
}

// stripName removes every mention of the bot, with the spaces around it.
func (b *Bot) stripName(message string) string {
	return b.mention.ReplaceAllString(message, " ")
}

// rate reports the room's response rate, or sets it from "N" or "N%".
func (b *Bot) rate(room string, args []string) string {
	if len(args) == 0 || args[0] == "" {
		return fmt.Sprintf("Response rate set to %f in this room.", b.cfg.ResponseRate(room))
	}

	rate, err := ParseRate(args[0])
	if err != nil {
		return "Error: Could not parse number."
	}
	if err := b.cfg.SetResponseRate(room, rate); err != nil {
		return "Error: Response rate must be between 0 and 1."
	}

	b.logger.Info("Response rate changed", log.String("room", room), log.Float64("rate", rate))
	return fmt.Sprintf("Response rate set to %f.", rate)
}

// ParseRate reads the leading number of arg as a rate. A trailing percent sign
// divides it by 100.
func ParseRate(arg string) (float64, error) {
	num := rateArg.FindString(arg)
	percent := strings.HasSuffix(num, "%")
	num = strings.TrimSuffix(num, "%")
	if num == "" {
		return 0, fmt.Errorf("%w: %q is not a rate", ErrInvalidMessage, arg)
	}

	rate, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a rate", ErrInvalidMessage, arg)
	}
	if percent {
		rate /= 100
	}
	return rate, nil
}
