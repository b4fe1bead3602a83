package models

import (
	"encoding/json"
	"time"
)

// Address represents a single email address with an optional display name
type Address struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// AddressGroup represents one address header (From, To, Cc, ...) holding
// the original display text plus the parsed address list
type AddressGroup struct {
	DisplayText string    `json:"display_text"`
	Addresses   []Address `json:"addresses"`
}

// Empty reports whether the group carries no addresses at all
func (g AddressGroup) Empty() bool {
	return g.DisplayText == "" && len(g.Addresses) == 0
}

// Attachment represents an email attachment
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentID   string `json:"content_id,omitempty"` // for inline/CID references
	Disposition string `json:"disposition"`          // "attachment" or "inline"
	Content     []byte `json:"-"`                    // never serialized into payloads
}

// HeaderValueKind discriminates the shapes a header value can take
type HeaderValueKind int

const (
	// HeaderPlain is a single opaque string value
	HeaderPlain HeaderValueKind = iota
	// HeaderStructured is a value with sub-parameters (e.g. Content-Type; boundary=...)
	HeaderStructured
	// HeaderList is a multi-occurrence header (e.g. Received)
	HeaderList
)

// HeaderValue is a tagged variant: a plain string, a parameterized value,
// or an ordered list of values for headers that occur more than once
type HeaderValue struct {
	Kind   HeaderValueKind   `json:"-"`
	Plain  string            `json:"-"`
	Value  string            `json:"-"`
	Params map[string]string `json:"-"`
	List   []string          `json:"-"`
}

// PlainHeader builds a plain header value
func PlainHeader(v string) HeaderValue {
	return HeaderValue{Kind: HeaderPlain, Plain: v}
}

// StructuredHeader builds a parameterized header value
func StructuredHeader(value string, params map[string]string) HeaderValue {
	return HeaderValue{Kind: HeaderStructured, Value: value, Params: params}
}

// ListHeader builds a multi-occurrence header value
func ListHeader(values []string) HeaderValue {
	return HeaderValue{Kind: HeaderList, List: values}
}

// String returns a flat textual rendering regardless of kind
func (h HeaderValue) String() string {
	switch h.Kind {
	case HeaderStructured:
		return h.Value
	case HeaderList:
		if len(h.List) > 0 {
			return h.List[0]
		}
		return ""
	default:
		return h.Plain
	}
}

// MarshalJSON renders the variant in its natural JSON shape: a string for
// plain values, {"value","params"} for structured ones, an array for lists
func (h HeaderValue) MarshalJSON() ([]byte, error) {
	switch h.Kind {
	case HeaderStructured:
		return json.Marshal(struct {
			Value  string            `json:"value"`
			Params map[string]string `json:"params,omitempty"`
		}{Value: h.Value, Params: h.Params})
	case HeaderList:
		return json.Marshal(h.List)
	default:
		return json.Marshal(h.Plain)
	}
}

// UnmarshalJSON accepts any of the three wire shapes
func (h *HeaderValue) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		*h = PlainHeader(plain)
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*h = ListHeader(list)
		return nil
	}

	var structured struct {
		Value  string            `json:"value"`
		Params map[string]string `json:"params"`
	}
	if err := json.Unmarshal(data, &structured); err != nil {
		return err
	}
	*h = StructuredHeader(structured.Value, structured.Params)
	return nil
}

// CanonicalEmail is the normalized in-memory representation of one message,
// independent of wire format. MessageID is immutable once assigned.
type CanonicalEmail struct {
	MessageID string       `json:"message_id"`
	From      AddressGroup `json:"from"`
	To        AddressGroup `json:"to"`
	Cc        AddressGroup `json:"cc,omitempty"`
	Bcc       AddressGroup `json:"bcc,omitempty"`
	ReplyTo   AddressGroup `json:"reply_to,omitempty"`
	Subject   string       `json:"subject"`
	Date      time.Time    `json:"date"`

	// TextBody/HTMLBody are nil when the part was absent from the wire;
	// absence is preserved exactly, one is never synthesized from the other
	TextBody *string `json:"text_body,omitempty"`
	HTMLBody *string `json:"html_body,omitempty"`

	Attachments []Attachment           `json:"attachments,omitempty"`
	Headers     map[string]HeaderValue `json:"headers"`

	InReplyTo  *string  `json:"in_reply_to,omitempty"`
	References []string `json:"references,omitempty"`

	// ParseSuccess is false for best-effort results recovered from
	// degenerate MIME; ParseError records the reason
	ParseSuccess bool   `json:"parse_success"`
	ParseError   string `json:"parse_error,omitempty"`
}

// HasAttachments reports whether the message carries any attachments
func (e *CanonicalEmail) HasAttachments() bool {
	return len(e.Attachments) > 0
}

// Text returns the plain text body or "" when absent
func (e *CanonicalEmail) Text() string {
	if e.TextBody == nil {
		return ""
	}
	return *e.TextBody
}

// HTML returns the sanitized HTML body or "" when absent
func (e *CanonicalEmail) HTML() string {
	if e.HTMLBody == nil {
		return ""
	}
	return *e.HTMLBody
}
