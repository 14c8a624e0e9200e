package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/RegistryAccord/discovery-go/internal/auth"
	errordefs "github.com/RegistryAccord/discovery-go/internal/errors"
	"github.com/RegistryAccord/discovery-go/internal/event"
	"github.com/RegistryAccord/discovery-go/internal/form"
	"github.com/RegistryAccord/discovery-go/internal/metrics"
	"github.com/RegistryAccord/discovery-go/internal/model"
	"github.com/RegistryAccord/discovery-go/internal/request"
	"github.com/RegistryAccord/discovery-go/internal/storage"
	"github.com/RegistryAccord/discovery-go/internal/telemetry"
)

// CorrelationHeader carries a per-exchange UUID.
const CorrelationHeader = "X-Correlation-Id"

// maxErrorBody bounds how much of a non-2xx body is kept on the error.
const maxErrorBody = 64 << 10

// HTTP sends descriptors over net/http. Every exchange runs on its own
// goroutine; the zero value is not usable, use NewHTTP.
type HTTP struct {
	hc        *http.Client
	auth      auth.Authenticator
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher event.Publisher
	journal   storage.Journal
	tracer    trace.Tracer
}

// HTTPOption configures an HTTP transport.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the default client.
func WithHTTPClient(hc *http.Client) HTTPOption { return func(h *HTTP) { h.hc = hc } }

// WithAuth sets the authenticator applied to every request.
func WithAuth(a auth.Authenticator) HTTPOption { return func(h *HTTP) { h.auth = a } }

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) HTTPOption { return func(h *HTTP) { h.logger = l } }

// WithMetrics records exchange counts and durations on m.
func WithMetrics(m *metrics.Metrics) HTTPOption { return func(h *HTTP) { h.metrics = m } }

// WithPublisher publishes an event for every completed exchange.
func WithPublisher(p event.Publisher) HTTPOption { return func(h *HTTP) { h.publisher = p } }

// WithJournal records every completed exchange.
func WithJournal(j storage.Journal) HTTPOption { return func(h *HTTP) { h.journal = j } }

// NewHTTP returns a transport with a connect timeout of 2s and an overall
// request timeout of timeout (none when zero).
func NewHTTP(timeout time.Duration, opts ...HTTPOption) *HTTP {
	rt := &http.Transport{
		Proxy:       http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{Timeout: 2 * time.Second}).DialContext,
	}
	h := &HTTP{
		hc:        &http.Client{Transport: rt, Timeout: timeout},
		auth:      auth.None{},
		logger:    slog.Default(),
		publisher: event.Noop(),
		tracer:    telemetry.Tracer(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Send starts the exchange on a new goroutine and returns immediately.
func (h *HTTP) Send(ctx context.Context, d *request.Descriptor, cb Callback) {
	go func() {
		resp, err := h.Do(ctx, d)
		if cb != nil {
			cb(resp, err)
		}
	}()
}

// Do performs the exchange synchronously. Non-2xx responses are returned
// as transport errors carrying the status and body.
func (h *HTTP) Do(ctx context.Context, d *request.Descriptor) (*Response, error) {
	start := time.Now()
	correlationID := uuid.New().String()

	ctx, span := h.tracer.Start(ctx, d.Operation, trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("discovery.operation", d.Operation),
			attribute.String("discovery.request_id", d.ID),
			attribute.String("discovery.epoch", d.Epoch.String()),
			attribute.String("http.request.method", d.Method),
			attribute.String("url.full", d.URI),
		))
	defer span.End()

	resp, err := h.exchange(ctx, d, correlationID)

	status := 0
	if resp != nil {
		status = resp.StatusCode
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	h.complete(ctx, d, correlationID, status, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (h *HTTP) exchange(ctx context.Context, d *request.Descriptor, correlationID string) (*Response, error) {
	req, err := h.newRequest(ctx, d)
	if err != nil {
		return nil, errordefs.Transport(d.Operation, err)
	}
	req.Header.Set(CorrelationHeader, correlationID)
	if err := h.auth.Apply(req); err != nil {
		if req.Body != nil {
			req.Body.Close()
		}
		return nil, errordefs.Transport(d.Operation, fmt.Errorf("authenticate: %w", err))
	}

	httpResp, err := h.hc.Do(req)
	if err != nil {
		return nil, errordefs.Transport(d.Operation, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errordefs.Transport(d.Operation, fmt.Errorf("read response: %w", err))
	}
	resp := &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: body}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return resp, errordefs.HTTPStatus(d.Operation, httpResp.StatusCode, body)
	}
	return resp, nil
}

// newRequest builds the *http.Request for d. Multipart bodies are streamed,
// so upload sources are read only while the request is written.
func (h *HTTP) newRequest(ctx context.Context, d *request.Descriptor) (*http.Request, error) {
	var (
		body        io.Reader
		contentType string
	)
	switch d.Body {
	case request.BodyJSON:
		body = bytes.NewReader(d.JSON)
		contentType = "application/json"
	case request.BodyMultipart:
		rc, ct := form.Encode(d.Parts)
		body = rc
		contentType = ct
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, d.URI, body)
	if err != nil {
		if rc, ok := body.(io.Closer); ok {
			rc.Close()
		}
		return nil, err
	}
	req.Header = d.Header.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return req, nil
}

// complete logs, measures, publishes and journals one exchange. Failures
// of the side channels are logged and never reach the caller.
func (h *HTTP) complete(ctx context.Context, d *request.Descriptor, correlationID string, status int, err error, elapsed time.Duration) {
	ex := model.Exchange{
		ID:            d.ID,
		Operation:     d.Operation,
		Method:        d.Method,
		URI:           d.URI,
		Epoch:         d.Epoch.String(),
		StatusCode:    status,
		CorrelationID: correlationID,
		Duration:      elapsed,
		CompletedAt:   time.Now().UTC(),
	}
	if err != nil {
		ex.Error = err.Error()
		h.logger.Warn("exchange failed",
			"id", d.ID, "operation", d.Operation, "method", d.Method,
			"status", status, "duration", elapsed, "correlationId", correlationID, "error", err)
	} else {
		h.logger.Info("exchange completed",
			"id", d.ID, "operation", d.Operation, "method", d.Method,
			"status", status, "duration", elapsed, "correlationId", correlationID)
	}

	label := metrics.Status(status)
	if h.metrics != nil {
		h.metrics.ExchangeTotal.WithLabelValues(d.Operation, d.Method, label).Inc()
		h.metrics.ExchangeDuration.WithLabelValues(d.Operation, d.Method, label).Observe(elapsed.Seconds())
	}

	// The caller's context may already be cancelled; side channels get their own.
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	pstatus := "ok"
	if perr := h.publisher.PublishExchange(sideCtx, ex); perr != nil {
		pstatus = "error"
		h.logger.Warn("exchange event publish failed", "id", d.ID, "error", perr)
	}
	if h.metrics != nil {
		h.metrics.EventPublishTotal.WithLabelValues(event.Subject(ex), pstatus).Inc()
	}

	if h.journal != nil {
		jstart := time.Now()
		jerr := h.journal.Record(sideCtx, ex)
		jstatus := "ok"
		if jerr != nil {
			jstatus = "error"
			h.logger.Warn("exchange journal write failed", "id", d.ID, "error", jerr)
		}
		if h.metrics != nil {
			h.metrics.JournalWriteTotal.WithLabelValues(h.journal.Backend(), jstatus).Inc()
			h.metrics.JournalWriteDuration.WithLabelValues(h.journal.Backend(), jstatus).Observe(time.Since(jstart).Seconds())
		}
	}
}
