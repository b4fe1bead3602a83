package threading

import (
	"regexp"
	"strings"

	"mailhook/internal/models"
)

// wrotePreamble matches "On ... wrote:" style citation lead-ins, including
// the localized verbs common in replies from non-English clients
var wrotePreamble = regexp.MustCompile(`(?i)^on\s.+(wrote|schrieb|écrit|escribió):\s*$|^am\s.+schrieb\s.+:\s*$|^le\s.+a écrit\s*:\s*$|^el\s.+escribió\s*:\s*$`)

// trailingQuoteHTML locates the last gmail-style quote container or trailing
// blockquote so the cited reply can be dropped from HTML bodies
var trailingQuoteHTML = regexp.MustCompile(`(?is)<(blockquote|div class="gmail_quote[^"]*")[^>]*>.*$`)

// ExtractNewContent strips quoted-reply content from a message's bodies,
// returning the text and html with the citation removed. If stripping would
// remove an entire non-empty body, the original body is kept unmodified.
func ExtractNewContent(email models.CanonicalEmail) (text, html string) {
	return extractText(email.Text()), extractHTML(email.HTML())
}

// extractText drops trailing quoted lines (> prefixed) and the "On ... wrote:"
// preamble immediately above them
func extractText(body string) string {
	if body == "" {
		return ""
	}

	lines := strings.Split(body, "\n")

	// Walk back over the trailing quoted block
	end := len(lines)
	for end > 0 {
		line := strings.TrimSpace(lines[end-1])
		if line == "" || strings.HasPrefix(line, ">") {
			end--
			continue
		}
		break
	}

	// A citation preamble directly above the quote belongs to it too
	if end > 0 && end < len(lines) && wrotePreamble.MatchString(strings.TrimSpace(lines[end-1])) {
		end--
	}

	stripped := strings.TrimRight(strings.Join(lines[:end], "\n"), " \t\r\n")
	if stripped == "" {
		// Never return empty content when the original was non-empty
		return body
	}
	return stripped
}

// extractHTML drops the deepest trailing blockquote / gmail_quote container
func extractHTML(body string) string {
	if body == "" {
		return ""
	}

	stripped := trailingQuoteHTML.ReplaceAllString(body, "")
	stripped = strings.TrimSpace(stripped)
	if stripped == "" || !containsRenderedText(stripped) {
		return body
	}
	return stripped
}

// containsRenderedText reports whether any visible text survives stripping
func containsRenderedText(html string) bool {
	tags := regexp.MustCompile(`<[^>]*>`)
	return strings.TrimSpace(tags.ReplaceAllString(html, "")) != ""
}
