package threading

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"mailhook/internal/models"
)

func strptr(s string) *string { return &s }

func TestExtractNewContent_Text(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "no quoting",
			body:     "Just a normal message.",
			expected: "Just a normal message.",
		},
		{
			name:     "trailing quote block",
			body:     "Thanks, sounds good!\n\n> Can we meet tomorrow?\n> Around noon?",
			expected: "Thanks, sounds good!",
		},
		{
			name:     "wrote preamble stripped with quote",
			body:     "Works for me.\n\nOn Mon, Mar 4, 2024 Alice wrote:\n> Can we meet tomorrow?",
			expected: "Works for me.",
		},
		{
			name:     "german citation preamble",
			body:     "Passt.\n\nAm 04.03.2024 schrieb Alice:\n> Treffen wir uns morgen?",
			expected: "Passt.",
		},
		{
			name:     "entirely quoted body is kept",
			body:     "> everything here\n> is a quote",
			expected: "> everything here\n> is a quote",
		},
		{
			name:     "interleaved quotes in the middle survive",
			body:     "> you said this\nAnd I reply inline.",
			expected: "> you said this\nAnd I reply inline.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := models.CanonicalEmail{TextBody: strptr(tt.body)}
			text, _ := ExtractNewContent(email)
			assert.Equal(t, tt.expected, text)
		})
	}
}

func TestExtractNewContent_HTML(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "trailing blockquote stripped",
			body:     `<p>Sounds good!</p><blockquote>original message</blockquote>`,
			expected: `<p>Sounds good!</p>`,
		},
		{
			name:     "gmail quote container stripped",
			body:     `<div>New reply</div><div class="gmail_quote">On Mon Alice wrote: ...</div>`,
			expected: `<div>New reply</div>`,
		},
		{
			name:     "body that is only a quote is kept",
			body:     `<blockquote>only quoted content</blockquote>`,
			expected: `<blockquote>only quoted content</blockquote>`,
		},
		{
			name:     "no quoting",
			body:     `<p>Plain reply</p>`,
			expected: `<p>Plain reply</p>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			email := models.CanonicalEmail{HTMLBody: strptr(tt.body)}
			_, html := ExtractNewContent(email)
			assert.Equal(t, tt.expected, html)
		})
	}
}

func TestExtractNewContent_AbsentBodies(t *testing.T) {
	text, html := ExtractNewContent(models.CanonicalEmail{})
	assert.Empty(t, text)
	assert.Empty(t, html)
}
