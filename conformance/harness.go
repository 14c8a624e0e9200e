// Package conformance provides a harness that drives every Discovery
// operation through the client and HTTP transport against the stub service,
// and checks what arrived on the wire.
package conformance

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegistryAccord/discovery-go/internal/auth"
	"github.com/RegistryAccord/discovery-go/internal/discovery"
	errordefs "github.com/RegistryAccord/discovery-go/internal/errors"
	"github.com/RegistryAccord/discovery-go/internal/model"
	"github.com/RegistryAccord/discovery-go/internal/request"
	"github.com/RegistryAccord/discovery-go/internal/server"
	"github.com/RegistryAccord/discovery-go/internal/storage"
	"github.com/RegistryAccord/discovery-go/internal/transport"
)

// Harness runs one stub service and one client for a version date.
type Harness struct {
	server    *httptest.Server
	mux       *server.Mux
	client    *discovery.Client
	transport *transport.HTTP
	journal   storage.Journal
	pub       *recordingPublisher
}

// Config holds configuration for the conformance test harness.
type Config struct {
	// VersionDate is sent as the version query parameter
	VersionDate string

	// JournalDSN selects the exchange journal; empty means in-memory
	JournalDSN string

	// Username and Password are required by the stub and sent by the client
	Username string
	Password string
}

// NewHarness starts the stub and wires a client to it.
func NewHarness(ctx context.Context, cfg Config) (*Harness, error) {
	mux, err := server.NewMux(server.WithBasicAuth(cfg.Username, cfg.Password))
	if err != nil {
		return nil, err
	}
	journal, err := storage.Open(ctx, cfg.JournalDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	srv := httptest.NewServer(mux)

	pub := &recordingPublisher{}
	ht := transport.NewHTTP(10*time.Second,
		transport.WithAuth(auth.Basic{Username: cfg.Username, Password: cfg.Password}),
		transport.WithJournal(journal),
		transport.WithPublisher(pub),
	)
	client, err := discovery.New(discovery.Config{
		Username:    cfg.Username,
		Password:    cfg.Password,
		URL:         srv.URL,
		VersionDate: cfg.VersionDate,
	}, ht)
	if err != nil {
		srv.Close()
		journal.Close()
		return nil, err
	}
	return &Harness{server: srv, mux: mux, client: client, transport: ht, journal: journal, pub: pub}, nil
}

// URL returns the base URL of the stub.
func (h *Harness) URL() string {
	return h.server.URL
}

// Close shuts down the stub and releases the journal.
func (h *Harness) Close() {
	h.server.Close()
	h.journal.Close()
}

// recordingPublisher keeps every exchange event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []model.Exchange
}

func (p *recordingPublisher) PublishExchange(ctx context.Context, e model.Exchange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// call sends req through the client's callback API and waits for it.
func (h *Harness) call(t *testing.T, req discovery.Request, out interface{}) server.Received {
	t.Helper()
	type result struct {
		resp *transport.Response
		err  error
	}
	done := make(chan result, 1)
	d := h.client.Do(context.Background(), req, func(resp *transport.Response, err error) {
		done <- result{resp, err}
	})
	require.NotNil(t, d, "descriptor for %s", req.Operation())

	var r result
	select {
	case r = <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("%s: no callback", req.Operation())
	}
	require.NoError(t, r.err, req.Operation().String())
	if out != nil {
		require.NoError(t, r.resp.Decode(out))
	}

	got, ok := h.mux.Last()
	require.True(t, ok)
	h.checkWire(t, req.Operation(), got)
	return got
}

// checkWire asserts the request the stub saw matches the operation table.
func (h *Harness) checkWire(t *testing.T, id discovery.OperationID, got server.Received) {
	t.Helper()
	op, _ := discovery.Lookup(id)
	version := h.client.Version().Date

	assert.Equal(t, op.Name, got.Operation)
	assert.Equal(t, op.Method, got.Method)
	assert.True(t, strings.HasPrefix(got.RawQuery, "version="+version), "%s: query %q", op.Name, got.RawQuery)
	assert.Len(t, got.Query["version"], 1, op.Name)
	assert.Equal(t, "application/json", got.Header.Get("Accept"), op.Name)
	assert.NotEmpty(t, got.Header.Get(transport.CorrelationHeader), op.Name)

	ct := got.Header.Get("Content-Type")
	switch op.Body {
	case request.BodyNone:
		assert.Empty(t, ct, op.Name)
	case request.BodyJSON:
		assert.Equal(t, "application/json", ct, op.Name)
	case request.BodyMultipart:
		assert.True(t, strings.HasPrefix(ct, "multipart/form-data; boundary="), op.Name)
	}
}

// RunConformanceTests drives every operation once.
func (h *Harness) RunConformanceTests(t *testing.T) {
	t.Run("Lifecycle", h.testLifecycle)
	t.Run("Query", h.testQuery)
	t.Run("Coverage", h.testCoverage)
}

// RunAcceptanceTests checks the error taxonomy end to end.
func (h *Harness) RunAcceptanceTests(t *testing.T) {
	t.Run("MissingParameterNeverSent", h.testMissingParameter)
	t.Run("NotFoundIsTransportError", h.testNotFound)
	t.Run("Journal", h.testJournal)
}

func (h *Harness) testLifecycle(t *testing.T) {
	var env model.Environment
	h.call(t, discovery.CreateEnvironmentParams{Name: "conformance", Description: "harness"}, &env)
	require.NotEmpty(t, env.EnvironmentID)
	h.call(t, discovery.GetEnvironmentsParams{Name: "conformance"}, nil)
	h.call(t, discovery.GetEnvironmentParams{EnvironmentID: env.EnvironmentID}, nil)
	got := h.call(t, discovery.UpdateEnvironmentParams{EnvironmentID: env.EnvironmentID, Description: "updated"}, nil)
	assert.JSONEq(t, `{"description":"updated"}`, string(got.JSON))

	var conf model.Configuration
	h.call(t, discovery.CreateConfigurationParams{
		EnvironmentID: env.EnvironmentID,
		File:          []byte(`{"name":"conf"}`),
	}, &conf)
	h.call(t, discovery.GetConfigurationsParams{EnvironmentID: env.EnvironmentID}, nil)
	h.call(t, discovery.GetConfigurationParams{EnvironmentID: env.EnvironmentID, ConfigurationID: conf.ConfigurationID}, nil)
	h.call(t, discovery.UpdateConfigurationParams{
		EnvironmentID:   env.EnvironmentID,
		ConfigurationID: conf.ConfigurationID,
		File:            []byte(`{"name":"conf2"}`),
	}, nil)

	var col model.Collection
	h.call(t, discovery.CreateCollectionParams{EnvironmentID: env.EnvironmentID, Name: "col", ConfigurationID: conf.ConfigurationID}, &col)
	h.call(t, discovery.GetCollectionsParams{EnvironmentID: env.EnvironmentID}, nil)
	h.call(t, discovery.GetCollectionParams{EnvironmentID: env.EnvironmentID, CollectionID: col.CollectionID}, nil)
	h.call(t, discovery.UpdateCollectionParams{EnvironmentID: env.EnvironmentID, CollectionID: col.CollectionID, Language: "en"}, nil)

	var doc model.DocumentAccepted
	got = h.call(t, discovery.AddDocumentParams{
		EnvironmentID: env.EnvironmentID,
		CollectionID:  col.CollectionID,
		File:          strings.NewReader("conformance document"),
		Metadata:      map[string]string{"source": "harness"},
	}, &doc)
	names := []string{}
	for _, p := range got.Parts {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"file", "metadata"}, names)

	h.call(t, discovery.GetDocumentParams{EnvironmentID: env.EnvironmentID, CollectionID: col.CollectionID, DocumentID: doc.DocumentID}, nil)
	h.call(t, discovery.UpdateDocumentParams{
		EnvironmentID: env.EnvironmentID,
		CollectionID:  col.CollectionID,
		DocumentID:    doc.DocumentID,
		File:          []byte("conformance document, revised"),
	}, nil)
	h.call(t, discovery.GetCollectionFieldsParams{EnvironmentID: env.EnvironmentID, CollectionID: col.CollectionID}, nil)
	h.call(t, discovery.QueryParams{EnvironmentID: env.EnvironmentID, CollectionID: col.CollectionID, NaturalLanguageQuery: "revised"}, nil)

	h.call(t, discovery.DeleteDocumentParams{EnvironmentID: env.EnvironmentID, CollectionID: col.CollectionID, DocumentID: doc.DocumentID}, nil)
	h.call(t, discovery.DeleteCollectionParams{EnvironmentID: env.EnvironmentID, CollectionID: col.CollectionID}, nil)
	h.call(t, discovery.DeleteConfigurationParams{EnvironmentID: env.EnvironmentID, ConfigurationID: conf.ConfigurationID}, nil)
	h.call(t, discovery.DeleteEnvironmentParams{EnvironmentID: env.EnvironmentID}, nil)
}

func (h *Harness) testQuery(t *testing.T) {
	var env model.Environment
	h.call(t, discovery.CreateEnvironmentParams{Name: "query"}, &env)
	var col model.Collection
	h.call(t, discovery.CreateCollectionParams{EnvironmentID: env.EnvironmentID, Name: "q"}, &col)

	got := h.call(t, discovery.QueryParams{
		EnvironmentID:        env.EnvironmentID,
		CollectionID:         col.CollectionID,
		NaturalLanguageQuery: "a question about stuff and things",
		Filter:               "yesplease",
		Count:                discovery.Int(10),
		Sort:                 []string{"+field_1", "-field_2"},
		Passages:             discovery.Bool(true),
	}, nil)
	want := "version=" + h.client.Version().Date +
		"&natural_language_query=a%20question%20about%20stuff%20and%20things" +
		"&filter=yesplease&count=10&sort=%2Bfield_1%2C-field_2&passages=true"
	assert.Equal(t, want, got.RawQuery)
	assert.Equal(t, "+field_1,-field_2", got.Query.Get("sort"))
}

// testCoverage checks every catalog operation reached the stub.
func (h *Harness) testCoverage(t *testing.T) {
	seen := map[string]bool{}
	for _, r := range h.mux.Requests() {
		seen[r.Operation] = true
	}
	for _, id := range discovery.Operations() {
		assert.True(t, seen[id.String()], "operation %s never exercised", id)
	}
}

func (h *Harness) testMissingParameter(t *testing.T) {
	before := len(h.mux.Requests())
	called := make(chan error, 1)
	d := h.client.Do(context.Background(), discovery.GetCollectionParams{EnvironmentID: "env"}, func(resp *transport.Response, err error) {
		assert.Nil(t, resp)
		called <- err
	})
	assert.Nil(t, d)
	select {
	case err := <-called:
		assert.ErrorIs(t, err, errordefs.ErrMissingParameter)
	case <-time.After(5 * time.Second):
		t.Fatal("no callback")
	}
	assert.Len(t, h.mux.Requests(), before)
}

func (h *Harness) testNotFound(t *testing.T) {
	d, err := h.client.Describe(discovery.GetEnvironmentParams{EnvironmentID: "does-not-exist"})
	require.NoError(t, err)
	_, err = transport.Wait(context.Background(), h.transport, d)
	var e *errordefs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errordefs.DISCOVERY_TRANSPORT, e.Code)
	assert.Equal(t, http.StatusNotFound, e.StatusCode)
}

func (h *Harness) testJournal(t *testing.T) {
	page, err := h.journal.List(context.Background(), model.ListExchangesQuery{Limit: 100})
	require.NoError(t, err)
	require.NotEmpty(t, page.Exchanges)
	assert.Len(t, page.Exchanges, h.pub.count())

	var notFound int
	for _, e := range page.Exchanges {
		assert.NotEmpty(t, e.CorrelationID)
		if e.StatusCode == http.StatusNotFound {
			notFound++
			assert.False(t, e.Succeeded())
		}
	}
	assert.Equal(t, 1, notFound)
}
