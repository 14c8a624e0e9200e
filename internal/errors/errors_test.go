package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := MissingParameter("getEnvironment", "environment_id")

	assert.True(t, stderrors.Is(err, ErrMissingParameter))
	assert.False(t, stderrors.Is(err, ErrConfiguration))

	wrapped := fmt.Errorf("describe: %w", err)
	assert.True(t, stderrors.Is(wrapped, ErrMissingParameter))

	var target *Error
	if assert.True(t, stderrors.As(wrapped, &target)) {
		assert.Equal(t, "environment_id", target.Parameter)
		assert.Equal(t, "getEnvironment", target.Operation)
	}
}

func TestErrorString(t *testing.T) {
	err := MissingParameter("query", "collection_id")
	assert.Equal(t, `query: DISCOVERY_MISSING_PARAMETER: missing required parameter "collection_id"`, err.Error())

	cfg := Configuration("version date is required")
	assert.Equal(t, "DISCOVERY_CONFIGURATION: version date is required", cfg.Error())
}

func TestTransportUnwrap(t *testing.T) {
	err := Transport("getEnvironments", io.ErrUnexpectedEOF)
	assert.True(t, stderrors.Is(err, io.ErrUnexpectedEOF))
	assert.True(t, stderrors.Is(err, ErrTransport))
	assert.True(t, err.Temporary())
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		status    int
		temporary bool
	}{
		{http.StatusBadRequest, false},
		{http.StatusNotFound, false},
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
	}
	for _, tt := range tests {
		err := HTTPStatus("query", tt.status, []byte(`{"error":"nope"}`))
		assert.Equal(t, tt.status, err.StatusCode)
		assert.Equal(t, tt.temporary, err.Temporary(), "status %d", tt.status)
		assert.Equal(t, `{"error":"nope"}`, err.Details)
	}
}

func TestWithOperationCopies(t *testing.T) {
	base := InvalidParameter("", "file", "unsupported type int")
	named := base.WithOperation("addDocument")

	assert.Equal(t, "", base.Operation)
	assert.Equal(t, "addDocument", named.Operation)
}
