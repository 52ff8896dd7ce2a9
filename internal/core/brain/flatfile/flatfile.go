// Package flatfile reads and writes the plain text brain format.
//
// Every line holds one word pair followed by any number of follower/count
// pairs, all separated by single spaces:
//
//	the fox jumped 2 ran 3 ate 1
//
// Writes go to a temporary file in the target directory which is renamed over
// the target, so readers only ever see a complete file.
package flatfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/zeusync/markov/internal/core/brain"
)

// Follower is one follower/count column of a line.
type Follower struct {
	Word  string
	Count int
}

// Line is a decoded brain line. Followers keep the order they were written in.
type Line struct {
	Pair      brain.WordPair
	Followers []Follower
}

// FormatLine renders line without a trailing newline.
func FormatLine(line Line) string {
	var b strings.Builder
	b.WriteString(line.Pair.First)
	b.WriteByte(' ')
	b.WriteString(line.Pair.Second)
	for _, f := range line.Followers {
		b.WriteByte(' ')
		b.WriteString(f.Word)
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(f.Count))
	}
	return b.String()
}

// ParseLine decodes a single line. The trailing line terminator, if any, is ignored.
func ParseLine(raw string) (Line, error) {
	raw = strings.TrimSuffix(raw, "\n")
	raw = strings.TrimSuffix(raw, "\r")

	words := strings.Split(raw, " ")
	if len(words) < 2 {
		return Line{}, errors.New("expected a word pair")
	}
	if (len(words)-2)%2 != 0 {
		return Line{}, errors.New("follower without a count")
	}

	line := Line{
		Pair:      brain.Pair(words[0], words[1]),
		Followers: make([]Follower, 0, (len(words)-2)/2),
	}
	for i := 2; i < len(words); i += 2 {
		count, err := strconv.Atoi(words[i+1])
		if err != nil {
			return Line{}, errors.New("count of " + strconv.Quote(words[i]) + " is not a number")
		}
		if count < 1 {
			return Line{}, errors.New("count of " + strconv.Quote(words[i]) + " is not positive")
		}
		line.Followers = append(line.Followers, Follower{Word: words[i], Count: count})
	}
	return line, nil
}

// Decode reads lines from r and hands each one to fn. Blank lines are skipped.
// The first line that does not parse aborts decoding with a *brain.MalformedDataError.
func Decode(r io.Reader, source string, fn func(Line) error) error {
	reader := bufio.NewReader(r)
	for lineNo := 1; ; lineNo++ {
		raw, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		if trimmed := strings.TrimRight(raw, "\r\n"); trimmed != "" {
			line, perr := ParseLine(raw)
			if perr != nil {
				return &brain.MalformedDataError{Source: source, Line: lineNo, Reason: perr.Error()}
			}
			if ferr := fn(line); ferr != nil {
				return ferr
			}
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
	}
}

// Encode writes every line produced by lines to w.
func Encode(w io.Writer, lines iter.Seq[Line]) error {
	bw := bufio.NewWriter(w)
	var werr error
	for line := range lines {
		if werr = checkLine(line); werr != nil {
			break
		}
		if _, werr = bw.WriteString(FormatLine(line)); werr != nil {
			break
		}
		if werr = bw.WriteByte('\n'); werr != nil {
			break
		}
	}
	if werr != nil {
		return werr
	}
	return bw.Flush()
}

// checkLine rejects words that would not survive a round trip through the format.
func checkLine(line Line) error {
	words := []string{line.Pair.First, line.Pair.Second}
	for _, f := range line.Followers {
		words = append(words, f.Word)
	}
	for _, w := range words {
		if strings.ContainsAny(w, " \r\n") {
			return fmt.Errorf("word %q contains a separator", w)
		}
	}
	return nil
}

// Load decodes the brain file at path. A file that does not exist or cannot be
// opened is not an error: found is false and fn is never called. Parse failures
// are returned.
func Load(path string, fn func(Line) error) (found bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		return false, nil
	}
	defer f.Close()

	if err = Decode(f, path, fn); err != nil {
		return true, err
	}
	return true, nil
}

// WriteAtomic replaces path with the output of write. The data is written to a
// temporary sibling, synced and renamed over path. On failure the temporary file
// is removed and path is left untouched. Errors match brain.ErrPersistence.
func WriteAtomic(path string, write func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return brain.PersistenceError("create temp file", err)
	}

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = write(tmp); err != nil {
		return brain.PersistenceError("write temp file", err)
	}
	if err = tmp.Sync(); err != nil {
		return brain.PersistenceError("sync temp file", err)
	}
	if err = tmp.Close(); err != nil {
		return brain.PersistenceError("close temp file", err)
	}
	if err = os.Chmod(tmp.Name(), fs.FileMode(0o644)); err != nil {
		return brain.PersistenceError("chmod temp file", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return brain.PersistenceError("rename temp file", err)
	}
	return nil
}
