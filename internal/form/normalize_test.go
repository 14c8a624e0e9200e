package form

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePassesNamedStreams(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sampleWord.docx")
	require.NoError(t, os.WriteFile(path, []byte("docx"), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	got, err := Normalize(f)
	require.NoError(t, err)
	assert.Same(t, f, got)
}

func TestNormalizePassesNamedFileParts(t *testing.T) {
	src := &FilePart{Value: "foo", Options: PartOptions{Filename: "foo.bar"}}

	got, err := Normalize(src)
	require.NoError(t, err)
	assert.Same(t, src, got)
	assert.Equal(t, &FilePart{Value: "foo", Options: PartOptions{Filename: "foo.bar"}}, got)
}

func TestNormalizeAddsMissingFilename(t *testing.T) {
	src := &FilePart{
		Value:   `{"foo": "bar"}`,
		Options: PartOptions{ContentType: "application/json"},
	}

	got, err := Normalize(src)
	require.NoError(t, err)
	assert.Equal(t, &FilePart{
		Value:   `{"foo": "bar"}`,
		Options: PartOptions{ContentType: "application/json", Filename: "_"},
	}, got)
	assert.NotSame(t, src, got, "it should be a new object, not a modification of the existing one")
	assert.Empty(t, src.Options.Filename)
}

func TestNormalizeWraps(t *testing.T) {
	buf := []byte{1, 2, 3, 4}
	stream := strings.NewReader("stream")
	unnamed := &namedReader{Reader: bytes.NewReader(nil)}

	tests := []struct {
		name string
		in   interface{}
	}{
		{"buffers", buf},
		{"strings", "foo"},
		{"streams", stream},
		{"streams with an empty name", unnamed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, &FilePart{Value: tt.in, Options: PartOptions{Filename: "_"}}, got)
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	for _, in := range []interface{}{"foo", []byte("bar"), &FilePart{Value: "baz"}} {
		once, err := Normalize(in)
		require.NoError(t, err)
		twice, err := Normalize(once)
		require.NoError(t, err)
		assert.Same(t, once, twice)
	}
}

func TestNormalizeFilePartValue(t *testing.T) {
	got, err := Normalize(FilePart{Value: "x", Options: PartOptions{Filename: "x.txt"}})
	require.NoError(t, err)
	assert.Equal(t, "x.txt", got.(*FilePart).Options.Filename)
}

func TestNormalizeRejects(t *testing.T) {
	var nilPart *FilePart
	for _, in := range []interface{}{nil, nilPart, 42, struct{}{}, &FilePart{Value: 3}} {
		_, err := Normalize(in)
		assert.Error(t, err, "%#v", in)
	}
}

type namedReader struct {
	io.Reader
	name string
}

func (n *namedReader) Name() string { return n.name }
