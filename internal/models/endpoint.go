package models

import "time"

// EndpointType discriminates delivery destination variants
type EndpointType string

const (
	EndpointWebhook      EndpointType = "webhook"
	EndpointEmailForward EndpointType = "email_forward"
	EndpointEmailGroup   EndpointType = "email_group"
)

// WebhookFormat selects the payload dialect for webhook endpoints
type WebhookFormat string

const (
	FormatInbound WebhookFormat = "inbound"
	FormatDiscord WebhookFormat = "discord"
	FormatSlack   WebhookFormat = "slack"
)

// Dispatch timeout bounds in seconds
const (
	DefaultTimeoutSeconds = 30
	MinTimeoutSeconds     = 1
	MaxTimeoutSeconds     = 300
	MaxRetryAttempts      = 10
)

// Endpoint is a configured delivery destination. The Type field selects the
// variant; webhook fields and forwarding fields are populated accordingly.
// Endpoints are created by the configuration UI and consumed read-only here.
type Endpoint struct {
	ID   string       `db:"id" json:"id"`
	Name string       `db:"name" json:"name"`
	Type EndpointType `db:"type" json:"type"`

	// Webhook variant
	URL           string            `db:"url" json:"url,omitempty"`
	Format        WebhookFormat     `db:"format" json:"format,omitempty"`
	TimeoutSecs   int               `db:"timeout_seconds" json:"timeout_seconds,omitempty"`
	RetryAttempts int               `db:"retry_attempts" json:"retry_attempts,omitempty"`
	CustomHeaders map[string]string `db:"-" json:"custom_headers,omitempty"`
	SigningSecret string            `db:"signing_secret" json:"-"`

	// EmailForward / EmailGroup variants
	ForwardTo          string   `db:"forward_to" json:"forward_to,omitempty"`
	Recipients         []string `db:"-" json:"recipients,omitempty"`
	IncludeAttachments bool     `db:"include_attachments" json:"include_attachments,omitempty"`
	SubjectPrefix      string   `db:"subject_prefix" json:"subject_prefix,omitempty"`
	SenderName         string   `db:"sender_name" json:"sender_name,omitempty"`

	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Timeout returns the endpoint's delivery timeout clamped to the allowed range
func (e *Endpoint) Timeout() time.Duration {
	secs := e.TimeoutSecs
	if secs == 0 {
		secs = DefaultTimeoutSeconds
	}
	if secs < MinTimeoutSeconds {
		secs = MinTimeoutSeconds
	}
	if secs > MaxTimeoutSeconds {
		secs = MaxTimeoutSeconds
	}
	return time.Duration(secs) * time.Second
}

// Retries returns the configured retry attempts clamped to [0,10]
func (e *Endpoint) Retries() int {
	if e.RetryAttempts < 0 {
		return 0
	}
	if e.RetryAttempts > MaxRetryAttempts {
		return MaxRetryAttempts
	}
	return e.RetryAttempts
}

// DeliveryResult reports the outcome of a single dispatch attempt
type DeliveryResult struct {
	Success        bool   `json:"success"`
	StatusCode     int    `json:"status_code,omitempty"`
	ResponseBody   string `json:"response_body,omitempty"` // truncated excerpt
	ElapsedMs      int64  `json:"elapsed_ms"`
	TimedOut       bool   `json:"timed_out,omitempty"`
	Error          string `json:"error,omitempty"`
	AttemptsMade   int    `json:"attempts_made,omitempty"`
	DeliveryID     string `json:"delivery_id,omitempty"`
	EndpointID     string `json:"endpoint_id,omitempty"`
	EndpointFormat string `json:"endpoint_format,omitempty"`
}
