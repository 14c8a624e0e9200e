// Package model defines the data structures shared by the client, its
// transports and the stub service.
package model

import (
	"time"
)

// Exchange is the record of one completed request exchange.
// This corresponds to the exchanges table in storage.
type Exchange struct {
	ID            string        `json:"id" db:"id"`                        // Descriptor ID (ULID)
	Operation     string        `json:"operation" db:"operation"`          // Operation name, e.g. addDocument
	Method        string        `json:"method" db:"method"`                // HTTP method
	URI           string        `json:"uri" db:"uri"`                      // Absolute request URI
	Epoch         string        `json:"epoch" db:"epoch"`                  // Negotiated version epoch
	StatusCode    int           `json:"statusCode,omitempty" db:"status"`  // 0 when no response arrived
	Error         string        `json:"error,omitempty" db:"error"`        // Failure, if any
	CorrelationID string        `json:"correlationId" db:"correlation_id"` // X-Correlation-Id sent
	Duration      time.Duration `json:"duration" db:"duration_ms"`         // Stored in milliseconds
	CompletedAt   time.Time     `json:"completedAt" db:"completed_at"`     // When the callback fired
}

// Succeeded reports whether the exchange got a 2xx response.
func (e Exchange) Succeeded() bool {
	return e.Error == "" && e.StatusCode >= 200 && e.StatusCode < 300
}

// ListExchangesQuery filters and pages the exchange journal.
type ListExchangesQuery struct {
	Operation string    `json:"operation"` // Filter by operation name
	Limit     int       `json:"limit"`     // Page size, 25 by default, at most 100
	Cursor    string    `json:"cursor"`    // From a previous NextCursor
	Since     time.Time `json:"since"`     // Completed at or after
}

// ListExchangesResult is one page of exchanges, newest first.
type ListExchangesResult struct {
	Exchanges  []Exchange `json:"exchanges"`
	NextCursor string     `json:"nextCursor,omitempty"`
}
