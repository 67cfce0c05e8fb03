package document_test

import (
	"context"
	"strings"
	"testing"

	. "github.com/imrenagi/docstore/document"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConcat(t *testing.T) {
	tests := []struct {
		name     string
		sections []Section
		want     string
	}{
		{
			name:     "no sections",
			sections: nil,
			want:     "",
		},
		{
			name: "leading and trailing whitespace of the result is trimmed",
			sections: []Section{
				{Filename: "a.txt", Found: true, Content: []byte("  body  \n\n")},
			},
			want: "--- a.txt ---\n  body",
		},
		{
			name: "invalid utf-8 is dropped",
			sections: []Section{
				{Filename: "bin", Found: true, Content: []byte("ok\xff\xfe!")},
			},
			want: "--- bin ---\nok!",
		},
		{
			name: "line endings are kept verbatim",
			sections: []Section{
				{Filename: "dos.txt", Found: true, Content: []byte("one\r\ntwo\rthree")},
			},
			want: "--- dos.txt ---\none\r\ntwo\rthree",
		},
		{
			name: "not found sections have a header only",
			sections: []Section{
				{Filename: "a.txt", Found: true, Content: []byte("A")},
				{Filename: "gone.txt"},
				{Filename: "b.txt", Found: true, Content: []byte("B")},
			},
			want: "--- a.txt ---\nA\n--- gone.txt (not found) ---\n\n--- b.txt ---\nB",
		},
		{
			name: "empty files keep their header",
			sections: []Section{
				{Filename: "empty", Found: true, Content: []byte{}},
			},
			want: "--- empty ---",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Concat{}.Merge(context.Background(), tt.sections)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateFilename(t *testing.T) {
	valid := []string{"a.txt", "report final.pdf", ".hidden", "ünïcode.md", "a..b"}
	for _, name := range valid {
		assert.NoError(t, ValidateFilename(name, "meta.json"), name)
	}

	invalid := []string{"", ".", "..", "a/b", `a\b`, "a\x00", "meta.json", ".incoming-123", strings.Repeat("a", 256)}
	for _, name := range invalid {
		assert.ErrorIs(t, ValidateFilename(name, "meta.json"), ErrInvalidFilename, "%q", name)
	}
}
