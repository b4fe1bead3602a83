package models

import "time"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// DBHealthResponse represents the database health check response
type DBHealthResponse struct {
	Status    string        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Connected bool          `json:"connected"`
	Latency   time.Duration `json:"latency"`
	Error     string        `json:"error,omitempty"`
}

// ErrorResponse is the generic error envelope returned by the API
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// InboundResponse summarizes the relay result for one received message
type InboundResponse struct {
	MessageID    string           `json:"message_id"`
	ParseSuccess bool             `json:"parse_success"`
	ParseError   string           `json:"parse_error,omitempty"`
	Deliveries   []DeliveryResult `json:"deliveries"`
}

// ThreadPreviewResponse wraps the threading result for a posted batch
type ThreadPreviewResponse struct {
	Threads []Thread `json:"threads"`
	Count   int      `json:"count"`
}
