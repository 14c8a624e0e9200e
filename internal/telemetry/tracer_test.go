package telemetry

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer(t *testing.T) {
	var buf bytes.Buffer
	tp, err := InitTracer("discoveryctl-test", "0.0.0", &buf)
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := Tracer().Start(context.Background(), "query")
	span.End()
	ShutdownTracer(context.Background())

	assert.Contains(t, buf.String(), `"Name": "query"`)
	assert.Contains(t, buf.String(), "discoveryctl-test")
}
