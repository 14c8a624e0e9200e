package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegistryAccord/discovery-go/internal/discovery"
	"github.com/RegistryAccord/discovery-go/internal/request"
	"github.com/RegistryAccord/discovery-go/internal/server"
)

// run executes the root command with fresh globals and returns stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dryRun, trace = false, false
	filePath, metadata = "", ""
	historyOperation, historyCursor, historyJSON = "", "", false
	historyLimit, historySince = 25, 0
	current = nil
	t.Cleanup(func() {
		if current != nil {
			current.close()
		}
	})

	var out, errOut bytes.Buffer
	Root.SetOut(&out)
	Root.SetErr(&errOut)
	Root.SetArgs(args)
	err := Root.Execute()
	return out.String(), err
}

func setEnv(t *testing.T, url string) {
	t.Setenv("DISCOVERY_ENV", "test")
	t.Setenv("DISCOVERY_URL", url)
	t.Setenv("DISCOVERY_VERSION_DATE", "2017-08-01")
	t.Setenv("DISCOVERY_USERNAME", "batman")
	t.Setenv("DISCOVERY_PASSWORD", "bruce-wayne")
	t.Setenv("DISCOVERY_TOKEN", "")
	t.Setenv("DISCOVERY_DB_DSN", "")
	t.Setenv("DISCOVERY_NATS_URL", "")
}

func TestParseParams(t *testing.T) {
	p, err := parseParams([]string{"a=1", "b=x=y", "c="})
	require.NoError(t, err)
	assert.Equal(t, params{"a": "1", "b": "x=y", "c": ""}, p)

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseParams([]string{"a=1", "a=2"})
	assert.Error(t, err)
}

func TestBuildRequestQuery(t *testing.T) {
	p, err := parseParams([]string{
		"environment_id=env", "collection_id=col",
		"natural_language_query=a question", "count=10", "sort=+field_1,-field_2", "passages=true",
	})
	require.NoError(t, err)
	req, err := buildRequest(discovery.Query, p, nil, "")
	require.NoError(t, err)

	q := req.(discovery.QueryParams)
	assert.Equal(t, "env", q.EnvironmentID)
	assert.Equal(t, []string{"+field_1", "-field_2"}, q.Sort)
	require.NotNil(t, q.Count)
	assert.Equal(t, 10, *q.Count)
	require.NotNil(t, q.Passages)
	assert.True(t, *q.Passages)
	assert.Nil(t, q.Offset)
}

func TestBuildRequestErrors(t *testing.T) {
	tests := []struct {
		name string
		id   discovery.OperationID
		args []string
	}{
		{"unknown key", discovery.GetEnvironments, []string{"bogus=1"}},
		{"path key on list", discovery.GetEnvironments, []string{"environment_id=x"}},
		{"bad int", discovery.Query, []string{"count=many"}},
		{"bad bool", discovery.Query, []string{"passages=maybe"}},
		{"bad size", discovery.CreateEnvironment, []string{"name=n", "size=big"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parseParams(tt.args)
			require.NoError(t, err)
			_, err = buildRequest(tt.id, p, nil, "")
			assert.Error(t, err)
		})
	}
}

func TestBuildRequestEveryOperation(t *testing.T) {
	for _, id := range discovery.Operations() {
		op, _ := discovery.Lookup(id)
		var args []string
		for _, name := range request.Placeholders(op.Path) {
			args = append(args, name+"="+name+"-guid")
		}
		p, err := parseParams(args)
		require.NoError(t, err)
		req, err := buildRequest(id, p, []byte("x"), "")
		require.NoError(t, err, op.Name)
		assert.Equal(t, id, req.Operation(), op.Name)
	}
}

func TestDryRun(t *testing.T) {
	setEnv(t, "http://ibm.com:80")
	out, err := run(t, "--dry-run", "call", "getCollection", "environment_id=env", "collection_id=col")
	require.NoError(t, err)

	var s request.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "getCollection", s.Operation)
	assert.Equal(t, "GET", s.Method)
	assert.Equal(t, "http://ibm.com:80/v1/environments/env/collections/col?version=2017-08-01", s.URI)
	assert.NotEmpty(t, s.ID)
}

func TestDryRunMissingParameter(t *testing.T) {
	setEnv(t, "http://ibm.com:80")
	_, err := run(t, "--dry-run", "call", "getCollection", "environment_id=env")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection_id")
}

func TestUnknownOperation(t *testing.T) {
	setEnv(t, "http://ibm.com:80")
	_, err := run(t, "call", "nope")
	assert.Error(t, err)
}

func TestOperations(t *testing.T) {
	setEnv(t, "http://ibm.com:80")
	out, err := run(t, "operations")
	require.NoError(t, err)
	assert.Contains(t, out, "getEnvironments")
	assert.Contains(t, out, "query")
}

func TestCallAgainstStub(t *testing.T) {
	m, err := server.NewMux(server.WithBasicAuth("batman", "bruce-wayne"))
	require.NoError(t, err)
	srv := httptest.NewServer(m)
	defer srv.Close()
	setEnv(t, srv.URL)

	out, err := run(t, "call", "createEnvironment", "name=news", "size=0")
	require.NoError(t, err)
	var env struct {
		EnvironmentID string `json:"environment_id"`
		Size          int    `json:"size"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &env))
	assert.NotEmpty(t, env.EnvironmentID)
	assert.Equal(t, 0, env.Size)

	file := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"name":"cfg"}`), 0o600))
	out, err = run(t, "call", "createConfiguration", "environment_id="+env.EnvironmentID, "--file", file)
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "cfg"`)

	last, ok := m.Last()
	require.True(t, ok)
	part, ok := last.Part("file")
	require.True(t, ok)
	assert.Equal(t, "config.json", part.Filename)

	_, err = run(t, "call", "getEnvironment", "environment_id=missing")
	assert.Error(t, err)
}
