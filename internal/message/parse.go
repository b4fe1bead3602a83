package message

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"mailhook/internal/models"
)

// Headers whose values carry sub-parameters and are normalized into the
// structured variant
var parameterizedHeaders = map[string]bool{
	"content-type":        true,
	"content-disposition": true,
}

// Parse decodes raw inbound MIME into a CanonicalEmail. Input with no
// readable header block fails with ErrParse; anything past that yields a
// best-effort result, with ParseSuccess=false and a recorded reason when
// body decoding ran into trouble, because upstream delivery must not block
// on a single malformed message.
func Parse(raw []byte) (*models.CanonicalEmail, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	email := &models.CanonicalEmail{
		Headers:      make(map[string]models.HeaderValue),
		ParseSuccess: true,
	}

	normalizeHeaders(msg.Header, email)

	email.Subject = decodeHeader(msg.Header.Get("Subject"))
	email.From = parseAddressGroup(msg.Header.Get("From"))
	email.To = parseAddressGroup(msg.Header.Get("To"))
	email.Cc = parseAddressGroup(msg.Header.Get("Cc"))
	email.Bcc = parseAddressGroup(msg.Header.Get("Bcc"))
	email.ReplyTo = parseAddressGroup(msg.Header.Get("Reply-To"))

	email.MessageID = cleanMessageID(msg.Header.Get("Message-Id"))
	if email.MessageID == "" {
		email.MessageID = fmt.Sprintf("%s@mailhook.generated", uuid.NewString())
		email.Headers["message-id"] = models.PlainHeader("<" + email.MessageID + ">")
	}

	if date, err := msg.Header.Date(); err == nil {
		email.Date = date
	} else {
		email.Date = time.Now().UTC()
	}

	if inReplyTo := cleanMessageID(msg.Header.Get("In-Reply-To")); inReplyTo != "" {
		email.InReplyTo = &inReplyTo
	}
	if refs := msg.Header.Get("References"); refs != "" {
		for _, ref := range strings.Fields(refs) {
			if id := cleanMessageID(ref); id != "" {
				email.References = append(email.References, id)
			}
		}
	}

	if err := extractContent(msg, email); err != nil {
		email.ParseSuccess = false
		email.ParseError = err.Error()
	}

	return email, nil
}

// normalizeHeaders copies all headers into the canonical map with lower-cased
// names, preserving full fidelity: parameterized headers become structured
// values, repeated headers become ordered lists, the rest stay plain strings
func normalizeHeaders(header mail.Header, email *models.CanonicalEmail) {
	for name, values := range header {
		key := strings.ToLower(name)

		if len(values) > 1 {
			email.Headers[key] = models.ListHeader(values)
			continue
		}

		value := values[0]
		if parameterizedHeaders[key] {
			if mediaType, params, err := mime.ParseMediaType(value); err == nil {
				email.Headers[key] = models.StructuredHeader(mediaType, params)
				continue
			}
		}
		email.Headers[key] = models.PlainHeader(decodeHeader(value))
	}
}

// parseAddressGroup normalizes one address header into an AddressGroup,
// whether the raw header carries one or many addresses. Unparseable headers
// keep their display text with an empty address list.
func parseAddressGroup(raw string) models.AddressGroup {
	if raw == "" {
		return models.AddressGroup{}
	}

	decoded := decodeHeader(raw)
	group := models.AddressGroup{DisplayText: decoded}

	addresses, err := mail.ParseAddressList(raw)
	if err != nil {
		return group
	}
	for _, addr := range addresses {
		group.Addresses = append(group.Addresses, models.Address{
			Name:    addr.Name,
			Address: addr.Address,
		})
	}
	return group
}

// extractContent walks the MIME structure filling bodies and attachments.
// HTML bodies are sanitized before being surfaced; the unsanitized original
// is not retained.
func extractContent(msg *mail.Message, email *models.CanonicalEmail) error {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Unparseable content type: best effort, treat as plain text
		body, readErr := io.ReadAll(msg.Body)
		if readErr != nil {
			return fmt.Errorf("unreadable body: %w", readErr)
		}
		text := string(body)
		email.TextBody = &text
		return fmt.Errorf("unparseable content type %q: %v", contentType, err)
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return fmt.Errorf("multipart message missing boundary")
		}
		return walkMultipart(msg.Body, boundary, email)
	}

	content, err := decodeBody(msg.Body, msg.Header.Get("Content-Transfer-Encoding"))
	if err != nil {
		return fmt.Errorf("failed to decode body: %w", err)
	}
	setBody(email, mediaType, content)
	return nil
}

// walkMultipart recursively visits multipart parts, keeping the first body of
// each type and collecting attachments in order
func walkMultipart(body io.Reader, boundary string, email *models.CanonicalEmail) error {
	reader := multipart.NewReader(body, boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read part: %w", err)
		}

		partType := part.Header.Get("Content-Type")
		if partType == "" {
			partType = "text/plain"
		}
		mediaType, params, err := mime.ParseMediaType(partType)
		if err != nil {
			continue
		}

		if strings.HasPrefix(mediaType, "multipart/") {
			nested := params["boundary"]
			if nested == "" {
				continue
			}
			if err := walkMultipart(part, nested, email); err != nil {
				return err
			}
			continue
		}

		content, err := decodeBody(part, part.Header.Get("Content-Transfer-Encoding"))
		if err != nil {
			return fmt.Errorf("failed to decode part: %w", err)
		}

		disposition, dispParams, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
		isAttachment := disposition == "attachment"
		isInline := disposition == "inline" && part.Header.Get("Content-Id") != ""

		if isAttachment || isInline || (!strings.HasPrefix(mediaType, "text/") && filename(part, params, dispParams) != "") {
			email.Attachments = append(email.Attachments, models.Attachment{
				Filename:    filename(part, params, dispParams),
				ContentType: mediaType,
				SizeBytes:   int64(len(content)),
				ContentID:   cleanMessageID(part.Header.Get("Content-Id")),
				Disposition: dispositionOrDefault(disposition),
				Content:     content,
			})
			continue
		}

		setBody(email, mediaType, content)
	}

	return nil
}

// setBody assigns the first body of each type; later duplicates are ignored
func setBody(email *models.CanonicalEmail, mediaType string, content []byte) {
	switch {
	case strings.HasPrefix(mediaType, "text/plain"):
		if email.TextBody == nil {
			text := string(content)
			email.TextBody = &text
		}
	case strings.HasPrefix(mediaType, "text/html"):
		if email.HTMLBody == nil {
			html := SanitizeHTML(string(content))
			email.HTMLBody = &html
		}
	}
}

// decodeBody applies the Content-Transfer-Encoding
func decodeBody(r io.Reader, encoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "quoted-printable":
		r = quotedprintable.NewReader(r)
	case "base64":
		r = base64.NewDecoder(base64.StdEncoding, newBase64CleanReader(r))
	}
	return io.ReadAll(r)
}

// newBase64CleanReader strips CR/LF so line-wrapped base64 decodes cleanly
func newBase64CleanReader(r io.Reader) io.Reader {
	return &base64CleanReader{r: r}
}

type base64CleanReader struct {
	r io.Reader
}

func (c *base64CleanReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		cleaned := p[:0]
		for _, b := range p[:n] {
			if b != '\r' && b != '\n' {
				cleaned = append(cleaned, b)
			}
		}
		n = len(cleaned)
	}
	return n, err
}

func filename(part *multipart.Part, typeParams, dispParams map[string]string) string {
	if name := part.FileName(); name != "" {
		return decodeHeader(name)
	}
	if name := dispParams["filename"]; name != "" {
		return decodeHeader(name)
	}
	if name := typeParams["name"]; name != "" {
		return decodeHeader(name)
	}
	return ""
}

func dispositionOrDefault(disposition string) string {
	if disposition == "" {
		return "attachment"
	}
	return disposition
}

// decodeHeader decodes RFC 2047 encoded-words, falling back to the raw value
func decodeHeader(header string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// cleanMessageID strips angle brackets and whitespace from a Message-ID
func cleanMessageID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")
	return id
}
