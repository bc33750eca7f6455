package documents

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSplitterValidation(t *testing.T) {
	_, err := NewSplitter(0, 0)
	assert.Error(t, err)

	_, err = NewSplitter(10, 10)
	assert.Error(t, err)

	_, err = NewSplitter(10, -1)
	assert.Error(t, err)

	s, err := NewSplitter(500, 100)
	require.NoError(t, err)
	assert.Equal(t, 500, s.ChunkSize)
}

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
		want    []string
	}{
		{"empty", 10, 0, "", nil},
		{"fits in one chunk", 100, 10, "para one\n\npara two", []string{"para one\n\npara two"}},
		{"word boundaries", 10, 0, "hello world foo bar", []string{"hello", "world foo", "bar"}},
		{"overlap carries words", 10, 5, "hello world foo bar", []string{"hello", "world foo", "foo bar"}},
		{"long word split by characters", 5, 0, "ab abcdefgh", []string{"ab", "abcd", "efgh"}},
		{"counts runes not bytes", 4, 0, "ééé ééé", []string{"ééé", "ééé"}},
		{"paragraphs first", 12, 0, "first para\n\nsecond one", []string{"first para", "second one"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewSplitter(tt.size, tt.overlap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Split(tt.text))
		})
	}
}

func TestSplitHardCeiling(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 400; i++ {
		b.WriteString("budget ")
		if i%7 == 0 {
			b.WriteString("emergencyfundsavingsaccountallocation ")
		}
		if i%50 == 0 {
			b.WriteString("\n\n")
		}
	}

	s, err := NewSplitter(40, 10)
	require.NoError(t, err)

	chunks := s.Split(b.String())
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 40)
		assert.NotEmpty(t, c)
		assert.Equal(t, strings.TrimSpace(c), c)
	}
}

func TestSplitKeepingSeparator(t *testing.T) {
	assert.Equal(t, []string{"a", "\n\n", "\n\nb"}, splitKeepingSeparator("a\n\n\n\nb", "\n\n"))
	assert.Equal(t, []string{" x", " y"}, splitKeepingSeparator(" x y", " "))
	assert.Equal(t, []string{"h", "é"}, splitKeepingSeparator("hé", ""))
}
