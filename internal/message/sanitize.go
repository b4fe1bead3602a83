package message

import (
	"github.com/microcosm-cc/bluemonday"
)

var (
	// emailPolicy allows safe markup commonly seen in email bodies while
	// dropping scripts, styles and event handlers
	emailPolicy *bluemonday.Policy
	// strictPolicy strips all markup
	strictPolicy *bluemonday.Policy
)

func init() {
	strictPolicy = bluemonday.StrictPolicy()

	emailPolicy = bluemonday.UGCPolicy()
	emailPolicy.AllowElements("p", "br", "div", "span", "h1", "h2", "h3", "h4", "h5", "h6")
	emailPolicy.AllowElements("strong", "em", "u", "s", "code", "pre")
	emailPolicy.AllowElements("ul", "ol", "li")
	emailPolicy.AllowElements("blockquote")
	emailPolicy.AllowElements("a", "img")
	emailPolicy.AllowElements("table", "thead", "tbody", "tr", "th", "td")

	emailPolicy.AllowAttrs("href").OnElements("a")
	emailPolicy.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	emailPolicy.AllowAttrs("class").Globally()

	emailPolicy.RequireParseableURLs(true)
	emailPolicy.AllowURLSchemes("http", "https", "mailto", "cid")
}

// SanitizeHTML removes scripts, styles and event handlers from an HTML body
func SanitizeHTML(html string) string {
	return emailPolicy.Sanitize(html)
}

// StripHTML removes all HTML tags, leaving plain text
func StripHTML(html string) string {
	return strictPolicy.Sanitize(html)
}
