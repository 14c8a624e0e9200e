package model

import (
	"encoding/json"
	"time"
)

// Environment is a Discovery environment.
type Environment struct {
	EnvironmentID string    `json:"environment_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Size          int       `json:"size"`
	Created       time.Time `json:"created"`
	Updated       time.Time `json:"updated"`
}

// Collection is a set of documents inside an environment.
type Collection struct {
	CollectionID    string    `json:"collection_id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	ConfigurationID string    `json:"configuration_id,omitempty"`
	Language        string    `json:"language,omitempty"`
	Created         time.Time `json:"created"`
	Updated         time.Time `json:"updated"`
}

// Configuration describes how documents are converted and enriched.
type Configuration struct {
	ConfigurationID string          `json:"configuration_id"`
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Raw             json.RawMessage `json:"-"`
	Created         time.Time       `json:"created"`
	Updated         time.Time       `json:"updated"`
}

// DocumentAccepted is returned when a document is added or updated.
type DocumentAccepted struct {
	DocumentID string `json:"document_id"`
	Status     string `json:"status"`
}

// DocumentStatus reports the processing state of a document.
type DocumentStatus struct {
	DocumentID    string                 `json:"document_id"`
	Status        string                 `json:"status"`
	Filename      string                 `json:"filename,omitempty"`
	FileType      string                 `json:"file_type,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	StatusDetails string                 `json:"status_description,omitempty"`
}

// Field is one indexed field of a collection.
type Field struct {
	Field string `json:"field"`
	Type  string `json:"type"`
}

// QueryResponse is the result of a query.
type QueryResponse struct {
	MatchingResults int                      `json:"matching_results"`
	Results         []map[string]interface{} `json:"results"`
	Passages        []Passage                `json:"passages,omitempty"`
}

// Passage is a relevant excerpt of a result document.
type Passage struct {
	DocumentID   string  `json:"document_id"`
	PassageScore float64 `json:"passage_score"`
	PassageText  string  `json:"passage_text"`
}

// DeleteResult is returned by delete operations.
type DeleteResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// ErrorResponse is the body of a non-2xx response.
type ErrorResponse struct {
	Code  int    `json:"code"`
	Error string `json:"error"`
}
