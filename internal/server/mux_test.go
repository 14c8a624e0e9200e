package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegistryAccord/discovery-go/internal/auth"
	"github.com/RegistryAccord/discovery-go/internal/discovery"
	"github.com/RegistryAccord/discovery-go/internal/model"
	"github.com/RegistryAccord/discovery-go/internal/transport"
)

func newMux(t *testing.T, opts ...Option) *Mux {
	t.Helper()
	m, err := NewMux(opts...)
	require.NoError(t, err)
	return m
}

func serve(m *Mux, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, req)
	return rr
}

func multipartBody(t *testing.T, parts map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for name, content := range parts {
		fw, err := w.CreateFormFile(name, name+".json")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

// TestHealthzEndpoint verifies that /healthz returns 200 ok.
func TestHealthzEndpoint(t *testing.T) {
	rr := serve(newMux(t), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestVersionEnforced(t *testing.T) {
	m := newMux(t)
	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing", "/v1/environments", http.StatusBadRequest},
		{"not first", "/v1/environments?name=x&version=2017-08-01", http.StatusBadRequest},
		{"repeated", "/v1/environments?version=2017-08-01&version=2016-12-15", http.StatusBadRequest},
		{"empty", "/v1/environments?version=", http.StatusBadRequest},
		{"present", "/v1/environments?version=2017-08-01", http.StatusOK},
		{"unknown param", "/v1/environments?version=2017-08-01&bogus=1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(m, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
			assert.NotEmpty(t, rr.Header().Get("X-Correlation-Id"))
			if tt.status != http.StatusOK {
				var e model.ErrorResponse
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &e))
				assert.Equal(t, tt.status, e.Code)
				assert.NotEmpty(t, e.Error)
			}
		})
	}
}

func TestCorrelationIDEchoed(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1/environments?version=2017-08-01", nil)
	req.Header.Set("X-Correlation-Id", "abc")
	m := newMux(t)
	rr := serve(m, req)
	assert.Equal(t, "abc", rr.Header().Get("X-Correlation-Id"))
	last, ok := m.Last()
	require.True(t, ok)
	assert.Equal(t, "abc", last.CorrelationID)
	assert.Equal(t, "getEnvironments", last.Operation)
}

func TestUnknownRoute(t *testing.T) {
	rr := serve(newMux(t), httptest.NewRequest(http.MethodGet, "/v1/nothing?version=2017-08-01", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestAuth(t *testing.T) {
	basic := newMux(t, WithBasicAuth("u", "p"))
	req := httptest.NewRequest(http.MethodGet, "/v1/environments?version=2017-08-01", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(basic, req).Code)
	req.SetBasicAuth("u", "p")
	assert.Equal(t, http.StatusOK, serve(basic, req).Code)

	bearer := newMux(t, WithBearerToken("tok"))
	req = httptest.NewRequest(http.MethodGet, "/v1/environments?version=2017-08-01", nil)
	req.Header.Set("Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, serve(bearer, req).Code)
	req.Header.Set("Authorization", "Bearer tok")
	assert.Equal(t, http.StatusOK, serve(bearer, req).Code)
}

func TestCreateEnvironmentMultipart(t *testing.T) {
	m := newMux(t)
	body, ct := multipartBody(t, map[string]string{"body": `{"name":"env","size":0}`})
	req := httptest.NewRequest(http.MethodPost, "/v1/environments?version=2017-08-01", body)
	req.Header.Set("Content-Type", ct)

	rr := serve(m, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var env model.Environment
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env))
	assert.NotEmpty(t, env.EnvironmentID)
	assert.Equal(t, "env", env.Name)
	assert.Equal(t, 0, env.Size)

	last, _ := m.Last()
	part, ok := last.Part("body")
	require.True(t, ok)
	assert.JSONEq(t, `{"name":"env","size":0}`, string(part.Data))
}

func TestBodiesValidated(t *testing.T) {
	m := newMux(t)

	body, ct := multipartBody(t, map[string]string{"body": `{"size":1}`})
	req := httptest.NewRequest(http.MethodPost, "/v1/environments?version=2017-08-01", body)
	req.Header.Set("Content-Type", ct)
	rr := serve(m, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "name")

	req = httptest.NewRequest(http.MethodPost, "/v1/environments?version=2017-08-01", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusUnsupportedMediaType, serve(m, req).Code)

	req = httptest.NewRequest(http.MethodPut, "/v1/environments/e?version=2017-08-01", strings.NewReader(`not json`))
	assert.Equal(t, http.StatusBadRequest, serve(m, req).Code)
}

func TestNotFound(t *testing.T) {
	m := newMux(t)
	for _, target := range []string{
		"/v1/environments/missing?version=2017-08-01",
		"/v1/environments/missing/collections/c?version=2017-08-01",
		"/v1/environments/missing/configurations/c?version=2017-08-01",
	} {
		rr := serve(m, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusNotFound, rr.Code, target)
	}
}

func TestReset(t *testing.T) {
	m := newMux(t)
	serve(m, httptest.NewRequest(http.MethodGet, "/v1/environments?version=2017-08-01", nil))
	require.Len(t, m.Requests(), 1)
	m.Reset()
	assert.Empty(t, m.Requests())
	_, ok := m.Last()
	assert.False(t, ok)
}

// TestLifecycle drives the stub through the client and HTTP transport.
func TestLifecycle(t *testing.T) {
	m := newMux(t, WithBasicAuth("batman", "bruce-wayne"))
	srv := httptest.NewServer(m)
	defer srv.Close()

	ht := transport.NewHTTP(5*time.Second, transport.WithAuth(auth.Basic{Username: "batman", Password: "bruce-wayne"}))
	c, err := discovery.New(discovery.Config{URL: srv.URL, VersionDate: "2017-08-01"}, ht)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	do := func(req discovery.Request, out interface{}) *transport.Response {
		t.Helper()
		d, err := c.Describe(req)
		require.NoError(t, err)
		resp, err := transport.Wait(ctx, ht, d)
		require.NoError(t, err)
		if out != nil {
			require.NoError(t, resp.Decode(out))
		}
		return resp
	}

	var env model.Environment
	do(discovery.CreateEnvironmentParams{Name: "news"}, &env)
	assert.Equal(t, 1, env.Size)

	var conf model.Configuration
	do(discovery.CreateConfigurationParams{
		EnvironmentID: env.EnvironmentID,
		File:          []byte(`{"name":"default config"}`),
	}, &conf)
	assert.Equal(t, "default config", conf.Name)

	var col model.Collection
	do(discovery.CreateCollectionParams{EnvironmentID: env.EnvironmentID, Name: "articles", ConfigurationID: conf.ConfigurationID}, &col)

	var accepted model.DocumentAccepted
	do(discovery.AddDocumentParams{
		EnvironmentID: env.EnvironmentID,
		CollectionID:  col.CollectionID,
		File:          strings.NewReader("the quick brown fox"),
		Metadata:      `{"author":"aesop","year":1}`,
	}, &accepted)
	assert.Equal(t, "processing", accepted.Status)

	var status model.DocumentStatus
	do(discovery.GetDocumentParams{EnvironmentID: env.EnvironmentID, CollectionID: col.CollectionID, DocumentID: accepted.DocumentID}, &status)
	assert.Equal(t, "aesop", status.Metadata["author"])

	var fields struct {
		Fields []model.Field `json:"fields"`
	}
	do(discovery.GetCollectionFieldsParams{EnvironmentID: env.EnvironmentID, CollectionID: col.CollectionID}, &fields)
	assert.Contains(t, fields.Fields, model.Field{Field: "metadata.author", Type: "string"})
	assert.Contains(t, fields.Fields, model.Field{Field: "metadata.year", Type: "double"})

	var result model.QueryResponse
	do(discovery.QueryParams{
		EnvironmentID:        env.EnvironmentID,
		CollectionID:         col.CollectionID,
		NaturalLanguageQuery: "Brown Fox",
		Count:                discovery.Int(5),
		Passages:             discovery.Bool(true),
		PassagesCharacters:   discovery.Int(9),
	}, &result)
	assert.Equal(t, 1, result.MatchingResults)
	require.Len(t, result.Passages, 1)
	assert.Equal(t, "the quick", result.Passages[0].PassageText)

	var list struct {
		Environments []model.Environment `json:"environments"`
	}
	do(discovery.GetEnvironmentsParams{Name: "news"}, &list)
	require.Len(t, list.Environments, 1)

	do(discovery.DeleteDocumentParams{EnvironmentID: env.EnvironmentID, CollectionID: col.CollectionID, DocumentID: accepted.DocumentID}, nil)
	do(discovery.DeleteCollectionParams{EnvironmentID: env.EnvironmentID, CollectionID: col.CollectionID}, nil)
	do(discovery.DeleteEnvironmentParams{EnvironmentID: env.EnvironmentID}, nil)

	d, err := c.Describe(discovery.GetEnvironmentParams{EnvironmentID: env.EnvironmentID})
	require.NoError(t, err)
	_, err = transport.Wait(ctx, ht, d)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}
