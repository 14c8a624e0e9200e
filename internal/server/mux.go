// Package server implements an in-process Discovery service.
// It routes every operation of the client catalog, enforces the version
// query parameter, parses JSON and multipart bodies, and keeps environments,
// collections, configurations and documents in memory. Every request it
// receives is recorded so tests can assert on the wire format.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RegistryAccord/discovery-go/internal/discovery"
	"github.com/RegistryAccord/discovery-go/internal/model"
	"github.com/RegistryAccord/discovery-go/internal/request"
	"github.com/RegistryAccord/discovery-go/internal/schema"
	"github.com/RegistryAccord/discovery-go/internal/version"
)

// ContextKey is used for context values to avoid collisions
type ContextKey string

// ContextKeyCorrelationID stores the request correlation ID.
const ContextKeyCorrelationID ContextKey = "correlationId"

// maxBody bounds request bodies, multipart included.
const maxBody = 32 << 20

// Received is one request as the service saw it.
type Received struct {
	Operation     string
	Method        string
	Path          string
	RawQuery      string
	Query         url.Values
	Header        http.Header
	JSON          json.RawMessage
	Parts         []ReceivedPart
	CorrelationID string
}

// Part returns the part named name.
func (r Received) Part(name string) (ReceivedPart, bool) {
	for _, p := range r.Parts {
		if p.Name == name {
			return p, true
		}
	}
	return ReceivedPart{}, false
}

// ReceivedPart is one part of a multipart body.
type ReceivedPart struct {
	Name        string
	Filename    string
	ContentType string
	Data        []byte
}

// Mux is the stub service. It implements http.Handler.
type Mux struct {
	mux        *http.ServeMux
	apiVersion string
	validator  *schema.Validator
	logger     *slog.Logger
	username   string
	password   string
	token      string

	mu       sync.Mutex
	state    *state
	received []Received
}

// Option configures a Mux.
type Option func(*Mux)

// WithAPIVersion sets the path prefix. The default is discovery.DefaultAPIVersion.
func WithAPIVersion(v string) Option {
	return func(m *Mux) { m.apiVersion = strings.Trim(v, "/") }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option { return func(m *Mux) { m.logger = l } }

// WithBasicAuth rejects requests without these credentials.
func WithBasicAuth(username, password string) Option {
	return func(m *Mux) { m.username, m.password = username, password }
}

// WithBearerToken rejects requests without this bearer token.
func WithBearerToken(token string) Option { return func(m *Mux) { m.token = token } }

// NewMux creates the stub service with every operation registered.
func NewMux(opts ...Option) (*Mux, error) {
	validator, err := schema.NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize schema validator: %w", err)
	}
	m := &Mux{
		mux:        http.NewServeMux(),
		apiVersion: discovery.DefaultAPIVersion,
		validator:  validator,
		logger:     slog.Default(),
		state:      newState(),
	}
	for _, opt := range opts {
		opt(m)
	}

	// Register health endpoints
	m.mux.HandleFunc("GET /healthz", m.handleHealthz)
	m.mux.Handle("GET /metrics", promhttp.Handler())

	for _, id := range discovery.Operations() {
		op, _ := discovery.Lookup(id)
		pattern := fmt.Sprintf("%s /%s%s", op.Method, m.apiVersion, op.Path)
		m.mux.HandleFunc(pattern, m.withMiddleware(id, op))
	}
	m.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not Found")
	})
	return m, nil
}

// ServeHTTP implements http.Handler.
func (m *Mux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mux.ServeHTTP(w, r)
}

// Requests returns a copy of every request received so far, oldest first.
func (m *Mux) Requests() []Received {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Received(nil), m.received...)
}

// Last returns the most recent request.
func (m *Mux) Last() (Received, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.received) == 0 {
		return Received{}, false
	}
	return m.received[len(m.received)-1], true
}

// Reset forgets all requests and all stored resources.
func (m *Mux) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = nil
	m.state = newState()
}

// statusRecorder captures the status written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withMiddleware applies correlation, auth, version and body handling, then
// dispatches to the operation.
func (m *Mux) withMiddleware(id discovery.OperationID, op request.Operation) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		// Add correlation ID if not present
		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		r = r.WithContext(context.WithValue(r.Context(), ContextKeyCorrelationID, correlationID))
		rec.Header().Set("X-Correlation-Id", correlationID)

		err := m.serve(rec, r, id, op, correlationID)
		m.logRequest(r, op.Name, rec.status, time.Since(start), correlationID, err)
	}
}

// httpError is a failure with the status it should be reported with.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func errorf(status int, format string, args ...interface{}) error {
	return &httpError{status: status, message: fmt.Sprintf(format, args...)}
}

func (m *Mux) serve(w http.ResponseWriter, r *http.Request, id discovery.OperationID, op request.Operation, correlationID string) error {
	err := m.authorize(r)
	if err == nil {
		err = checkVersion(r)
	}
	var in Received
	if err == nil {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		in, err = m.receive(r, op, correlationID)
	}
	if err == nil {
		m.mu.Lock()
		m.received = append(m.received, in)
		m.mu.Unlock()
		err = m.dispatch(w, r, id, in)
	}
	if err != nil {
		var he *httpError
		if !errors.As(err, &he) {
			he = &httpError{status: http.StatusInternalServerError, message: err.Error()}
		}
		writeError(w, he.status, he.message)
		return err
	}
	return nil
}

func (m *Mux) authorize(r *http.Request) error {
	switch {
	case m.token != "":
		if r.Header.Get("Authorization") != "Bearer "+m.token {
			return errorf(http.StatusUnauthorized, "Unauthorized")
		}
	case m.username != "":
		user, pass, ok := r.BasicAuth()
		if !ok || user != m.username || pass != m.password {
			return errorf(http.StatusUnauthorized, "Unauthorized")
		}
	}
	return nil
}

// checkVersion requires version to be the first query parameter, exactly once.
func checkVersion(r *http.Request) error {
	raw := r.URL.RawQuery
	if !strings.HasPrefix(raw, "version=") {
		return errorf(http.StatusBadRequest, "The version query parameter must be provided first")
	}
	values := r.URL.Query()
	if len(values["version"]) != 1 || values.Get("version") == "" {
		return errorf(http.StatusBadRequest, "The version query parameter must be provided exactly once")
	}
	return nil
}

// receive reads and validates the body according to the operation's kind.
func (m *Mux) receive(r *http.Request, op request.Operation, correlationID string) (Received, error) {
	in := Received{
		Operation:     op.Name,
		Method:        r.Method,
		Path:          r.URL.EscapedPath(),
		RawQuery:      r.URL.RawQuery,
		Query:         r.URL.Query(),
		Header:        r.Header.Clone(),
		CorrelationID: correlationID,
	}
	for k := range in.Query {
		if k != "version" && !contains(op.Query, k) {
			return in, errorf(http.StatusBadRequest, "Unexpected query parameter %q", k)
		}
	}

	body := r.Body
	switch op.Body {
	case request.BodyJSON:
		data, err := io.ReadAll(body)
		if err != nil {
			return in, errorf(http.StatusBadRequest, "failed to read body: %v", err)
		}
		if !json.Valid(data) {
			return in, errorf(http.StatusBadRequest, "Request body is not valid JSON")
		}
		if err := m.validator.Validate(schema.Key(op.Name, ""), data); err != nil {
			return in, errorf(http.StatusBadRequest, "%v", err)
		}
		in.JSON = data
	case request.BodyMultipart:
		parts, err := readParts(r.Header.Get("Content-Type"), body)
		if err != nil {
			return in, err
		}
		for _, p := range parts {
			key := schema.Key(op.Name, p.Name)
			if !m.validator.Has(key) {
				continue
			}
			if err := m.validator.Validate(key, p.Data); err != nil {
				return in, errorf(http.StatusBadRequest, "%v", err)
			}
		}
		in.Parts = parts
	}
	return in, nil
}

func readParts(contentType string, body io.Reader) ([]ReceivedPart, error) {
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil || mt != "multipart/form-data" || params["boundary"] == "" {
		return nil, errorf(http.StatusUnsupportedMediaType, "Expected multipart/form-data, got %q", contentType)
	}
	var parts []ReceivedPart
	mr := multipart.NewReader(body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			return parts, nil
		}
		if err != nil {
			return nil, errorf(http.StatusBadRequest, "malformed multipart body: %v", err)
		}
		data, err := io.ReadAll(p)
		if err != nil {
			return nil, errorf(http.StatusBadRequest, "failed to read part %q: %v", p.FormName(), err)
		}
		parts = append(parts, ReceivedPart{
			Name:        p.FormName(),
			Filename:    p.FileName(),
			ContentType: p.Header.Get("Content-Type"),
			Data:        data,
		})
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// writeJSON writes a successful response
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(data)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// writeError writes an error response in the service's error shape
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, model.ErrorResponse{Code: statusCode, Error: message})
}

// logRequest logs request details
func (m *Mux) logRequest(r *http.Request, operation string, status int, duration time.Duration, correlationID string, err error) {
	attrs := []slog.Attr{
		slog.String("operation", operation),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.Duration("duration", duration),
		slog.String("correlation_id", correlationID),
	}
	if v := r.URL.Query().Get("version"); v != "" {
		if eff, verr := version.Negotiate(v); verr == nil {
			attrs = append(attrs, slog.String("epoch", eff.Epoch.String()))
		}
	}

	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
		m.logger.LogAttrs(r.Context(), slog.LevelWarn, "request completed with error", attrs...)
	} else {
		m.logger.LogAttrs(r.Context(), slog.LevelInfo, "request completed", attrs...)
	}
}

func (m *Mux) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
