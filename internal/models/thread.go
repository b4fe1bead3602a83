package models

// MessageType marks the direction of a message within a thread
type MessageType string

const (
	MessageInbound  MessageType = "inbound"
	MessageOutbound MessageType = "outbound"
)

// ThreadConfidence is the qualitative strength of a grouping decision
type ThreadConfidence string

const (
	// ConfidenceHigh means header-chain linking resolved the group
	ConfidenceHigh ThreadConfidence = "high"
	// ConfidenceMedium means the subject+participant heuristic matched uniquely
	ConfidenceMedium ThreadConfidence = "medium"
	// ConfidenceLow means several candidate groups existed and the
	// most-overlapping one was chosen
	ConfidenceLow ThreadConfidence = "low"
)

// Threading method identifiers reported on a Thread
const (
	ThreadingMethodHeaders     = "header-chain"
	ThreadingMethodSubject     = "subject-participants"
	ThreadingMethodSingleGroup = "single-message"
)

// ThreadMessage is a CanonicalEmail annotated with thread-relative metadata
type ThreadMessage struct {
	CanonicalEmail
	Type           MessageType `json:"type"`
	ThreadPosition int         `json:"thread_position"`
	ExtractedText  string      `json:"extracted_text,omitempty"`
	ExtractedHTML  string      `json:"extracted_html,omitempty"`
	IsRead         bool        `json:"is_read"`
}

// Thread is an ordered set of related messages reconstructed from header
// linkage or heuristics. A Thread is never empty; messages are totally
// ordered by timestamp with ties broken by insertion order.
type Thread struct {
	Messages        []ThreadMessage  `json:"messages"`
	Confidence      ThreadConfidence `json:"confidence"`
	ThreadingMethod string           `json:"threading_method"`
}
