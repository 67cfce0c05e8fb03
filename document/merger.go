package document

import (
	"context"
	"strings"
)

// Section is one requested file handed to a Merger. Content is nil when
// the file was not found.
type Section struct {
	Filename string
	Found    bool
	Content  []byte
}

// Merger turns an ordered list of sections into one consolidated text.
type Merger interface {
	Merge(ctx context.Context, sections []Section) (string, error)
}

// Concat writes a "--- name ---" header before each file's text. Missing
// files get a "(not found)" header and no body. Invalid UTF-8 is dropped.
type Concat struct{}

func (Concat) Merge(ctx context.Context, sections []Section) (string, error) {
	var sb strings.Builder
	for _, s := range sections {
		if !s.Found {
			sb.WriteString("\n--- " + s.Filename + " (not found) ---\n")
			continue
		}
		sb.WriteString("\n--- " + s.Filename + " ---\n")
		sb.WriteString(strings.ToValidUTF8(string(s.Content), ""))
	}
	return strings.TrimSpace(sb.String()), nil
}
