package message

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/quotedprintable"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"mailhook/internal/models"
)

// placeholderBody is emitted when a message has neither text nor html body,
// so the built message always carries at least one body part
const placeholderBody = "(no content)"

// base64LineLength is the maximum encoded line length required by RFC 2045
const base64LineLength = 76

// BuildParams describes one outbound message for Build
type BuildParams struct {
	From    string
	To      []string
	Cc      []string
	Bcc     []string
	ReplyTo string
	Subject string

	// Empty string means the body type is absent
	Text string
	HTML string

	Attachments   []models.Attachment
	CustomHeaders map[string]string
	InReplyTo     string
	References    []string
}

// Build encodes the given parameters into a raw RFC 2822 message: ordered
// headers followed by a multipart body selected by content shape. Bodies are
// quoted-printable encoded, attachments base64 encoded and line-wrapped.
// Addresses are not validated here; the only rejected input is an empty To list.
func Build(p BuildParams) ([]byte, error) {
	if len(p.To) == 0 {
		return nil, fmt.Errorf("%w: at least one recipient is required", ErrInvalidInput)
	}

	var buf bytes.Buffer
	enc := mime.QEncoding

	writeHeader(&buf, "From", p.From)
	writeHeader(&buf, "To", strings.Join(p.To, ", "))
	if len(p.Cc) > 0 {
		writeHeader(&buf, "Cc", strings.Join(p.Cc, ", "))
	}
	if p.ReplyTo != "" {
		writeHeader(&buf, "Reply-To", p.ReplyTo)
	}
	writeHeader(&buf, "Subject", enc.Encode("utf-8", p.Subject))

	// A caller-supplied Message-ID suppresses auto-generation; it is written
	// in the custom header block below
	if !hasCustomHeader(p.CustomHeaders, "Message-ID") {
		writeHeader(&buf, "Message-ID", generateMessageID(p.From))
	}
	if p.InReplyTo != "" {
		writeHeader(&buf, "In-Reply-To", angleWrap(p.InReplyTo))
	}
	if len(p.References) > 0 {
		refs := make([]string, len(p.References))
		for i, r := range p.References {
			refs[i] = angleWrap(r)
		}
		writeHeader(&buf, "References", strings.Join(refs, " "))
	}
	writeHeader(&buf, "Date", time.Now().UTC().Format(time.RFC1123Z))
	writeHeader(&buf, "MIME-Version", "1.0")

	if err := writeContent(&buf, p); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// writeContent selects the MIME structure by content shape and writes the
// Content-Type header, custom headers and the encoded body
func writeContent(buf *bytes.Buffer, p BuildParams) error {
	hasText := p.Text != ""
	hasHTML := p.HTML != ""

	switch {
	case len(p.Attachments) > 0:
		boundary := newBoundary("mixed")
		writeHeader(buf, "Content-Type", fmt.Sprintf("multipart/mixed; boundary=%q", boundary))
		writeCustomHeaders(buf, p.CustomHeaders)
		buf.WriteString("\r\n")
		if err := writeBodyPart(buf, boundary, p); err != nil {
			return err
		}
		for _, att := range p.Attachments {
			writeAttachmentPart(buf, boundary, att)
		}
		fmt.Fprintf(buf, "--%s--\r\n", boundary)

	case hasText && hasHTML:
		boundary := newBoundary("alt")
		writeHeader(buf, "Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", boundary))
		writeCustomHeaders(buf, p.CustomHeaders)
		buf.WriteString("\r\n")
		writeAlternative(buf, boundary, p.Text, p.HTML)

	case hasHTML:
		writeHeader(buf, "Content-Type", `text/html; charset="utf-8"`)
		writeHeader(buf, "Content-Transfer-Encoding", "quoted-printable")
		writeCustomHeaders(buf, p.CustomHeaders)
		buf.WriteString("\r\n")
		writeQuotedPrintable(buf, p.HTML)

	default:
		body := p.Text
		if body == "" {
			body = placeholderBody
		}
		writeHeader(buf, "Content-Type", `text/plain; charset="utf-8"`)
		writeHeader(buf, "Content-Transfer-Encoding", "quoted-printable")
		writeCustomHeaders(buf, p.CustomHeaders)
		buf.WriteString("\r\n")
		writeQuotedPrintable(buf, body)
	}

	return nil
}

// writeBodyPart writes the body of a multipart/mixed message: a nested
// multipart/alternative when both body types are present, a single text or
// html part otherwise, and a placeholder text part when neither exists
func writeBodyPart(buf *bytes.Buffer, boundary string, p BuildParams) error {
	hasText := p.Text != ""
	hasHTML := p.HTML != ""

	switch {
	case hasText && hasHTML:
		// Nested boundary must never match the outer one; uuid-derived
		// boundaries guarantee that
		nested := newBoundary("alt")
		fmt.Fprintf(buf, "--%s\r\n", boundary)
		writeHeader(buf, "Content-Type", fmt.Sprintf("multipart/alternative; boundary=%q", nested))
		buf.WriteString("\r\n")
		writeAlternative(buf, nested, p.Text, p.HTML)
	case hasHTML:
		writeTextPart(buf, boundary, "text/html", p.HTML)
	case hasText:
		writeTextPart(buf, boundary, "text/plain", p.Text)
	default:
		writeTextPart(buf, boundary, "text/plain", placeholderBody)
	}
	return nil
}

// writeAlternative writes text and html parts, plain text first per convention
func writeAlternative(buf *bytes.Buffer, boundary, text, html string) {
	writeTextPart(buf, boundary, "text/plain", text)
	writeTextPart(buf, boundary, "text/html", html)
	fmt.Fprintf(buf, "--%s--\r\n", boundary)
}

func writeTextPart(buf *bytes.Buffer, boundary, contentType, body string) {
	fmt.Fprintf(buf, "--%s\r\n", boundary)
	writeHeader(buf, "Content-Type", fmt.Sprintf("%s; charset=\"utf-8\"", contentType))
	writeHeader(buf, "Content-Transfer-Encoding", "quoted-printable")
	buf.WriteString("\r\n")
	writeQuotedPrintable(buf, body)
	buf.WriteString("\r\n")
}

func writeAttachmentPart(buf *bytes.Buffer, boundary string, att models.Attachment) {
	contentType := att.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	disposition := att.Disposition
	if disposition == "" {
		disposition = "attachment"
	}

	fmt.Fprintf(buf, "--%s\r\n", boundary)
	writeHeader(buf, "Content-Type", fmt.Sprintf("%s; name=%q", contentType, att.Filename))
	writeHeader(buf, "Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, att.Filename))
	writeHeader(buf, "Content-Transfer-Encoding", "base64")
	if att.ContentID != "" {
		writeHeader(buf, "Content-ID", angleWrap(att.ContentID))
	}
	buf.WriteString("\r\n")
	writeBase64(buf, att.Content)
}

// writeQuotedPrintable encodes body without a trailing line break so flat
// messages round-trip byte-exact; multipart callers add their own separator
func writeQuotedPrintable(buf *bytes.Buffer, body string) {
	qp := quotedprintable.NewWriter(buf)
	qp.Write([]byte(body)) //nolint:errcheck // bytes.Buffer writes cannot fail
	qp.Close()             //nolint:errcheck
}

// writeBase64 encodes data and wraps output at 76 characters per RFC 2045
func writeBase64(buf *bytes.Buffer, data []byte) {
	encoded := base64Encode(data)
	for len(encoded) > 0 {
		n := base64LineLength
		if n > len(encoded) {
			n = len(encoded)
		}
		buf.WriteString(encoded[:n])
		buf.WriteString("\r\n")
		encoded = encoded[n:]
	}
}

func writeHeader(buf *bytes.Buffer, key, value string) {
	buf.WriteString(key)
	buf.WriteString(": ")
	buf.WriteString(value)
	buf.WriteString("\r\n")
}

// writeCustomHeaders writes caller headers in deterministic order
func writeCustomHeaders(buf *bytes.Buffer, headers map[string]string) {
	if len(headers) == 0 {
		return
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeHeader(buf, k, headers[k])
	}
}

func hasCustomHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// generateMessageID produces a unique Message-ID scoped to the sender's domain
func generateMessageID(from string) string {
	domain := "mailhook.generated"
	if at := strings.LastIndex(from, "@"); at >= 0 {
		domain = strings.Trim(strings.TrimSpace(from[at+1:]), "<> ")
	}
	return fmt.Sprintf("<%s@%s>", uuid.NewString(), domain)
}

// newBoundary returns a boundary token random enough not to collide with
// body content and never reused across nesting levels
func newBoundary(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

func base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func angleWrap(id string) string {
	if strings.HasPrefix(id, "<") {
		return id
	}
	return "<" + id + ">"
}
