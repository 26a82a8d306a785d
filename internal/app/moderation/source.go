package moderation

import (
	"context"
	"fmt"
	"os"
	"strings"

	"blip/internal/pkg/logx"
)

// ObjectGetter fetches an object body by key. The S3 storage service satisfies it.
type ObjectGetter interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// Sources lists where custom dictionary additions come from.
type Sources struct {
	// Extra are words given directly, e.g. from configuration.
	Extra []string

	// File is an optional local word list.
	File string

	// Objects and ObjectKey point at an optional word list in object storage.
	Objects   ObjectGetter
	ObjectKey string
}

// ParseWordList splits a word list on newlines and commas. Blank entries and lines starting
// with '#' are skipped.
func ParseWordList(data string) []string {
	var words []string
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, w := range strings.Split(line, ",") {
			if w = strings.TrimSpace(w); w != "" {
				words = append(words, w)
			}
		}
	}
	return words
}

// LoadFilter builds a filter from the embedded dictionary plus every configured source.
// A source that cannot be read fails the load; a misconfigured dictionary must not start silently.
func LoadFilter(ctx context.Context, src Sources) (*Filter, error) {
	words := append([]string(nil), src.Extra...)

	if src.File != "" {
		data, err := os.ReadFile(src.File)
		if err != nil {
			return nil, fmt.Errorf("read word list %s: %w", src.File, err)
		}
		words = append(words, ParseWordList(string(data))...)
	}

	if src.Objects != nil && src.ObjectKey != "" {
		data, err := src.Objects.GetObject(ctx, src.ObjectKey)
		if err != nil {
			return nil, fmt.Errorf("fetch word list object %s: %w", src.ObjectKey, err)
		}
		words = append(words, ParseWordList(string(data))...)
	}

	f := New(WithWords(words...))

	logx.Info("Moderation dictionary loaded",
		"custom_words", len(words),
		"dictionary_size", len(f.words),
	)

	return f, nil
}
