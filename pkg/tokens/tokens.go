// Package tokens provides model-token counting and truncation over the
// cl100k_base encoding, with a word-count estimate when the tokenizer is
// unavailable.
package tokens

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// encoding returns the cached cl100k_base tokenizer.
func encoding() (*tiktoken.Tiktoken, error) {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding(encodingName)
	})
	return enc, encErr
}

// Count returns the number of tokens in text. If the tokenizer cannot be
// loaded it falls back to the rough estimate ceil(words * 2).
func Count(text string) int {
	e, err := encoding()
	if err != nil {
		return Estimate(text)
	}
	return len(e.Encode(text, nil, nil))
}

// Estimate is the tokenizer-free approximation: two tokens per word.
func Estimate(text string) int {
	return len(strings.Fields(text)) * 2
}

// Truncate re-encodes text and keeps the first limit tokens. It returns
// the truncated text and its token count. If the tokenizer is
// unavailable the original text must be kept unmodified, so an error is
// returned instead of a lossy estimate-based cut.
func Truncate(text string, limit int) (string, int, error) {
	e, err := encoding()
	if err != nil {
		return "", 0, fmt.Errorf("loading %s encoding: %w", encodingName, err)
	}
	ids := e.Encode(text, nil, nil)
	if len(ids) <= limit {
		return text, len(ids), nil
	}
	return e.Decode(ids[:limit]), limit, nil
}
