package form

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPartsKeepsDeclaredOrder(t *testing.T) {
	parts, err := BuildParts([]Field{
		{Name: "file", Role: RoleFile, Value: "<html></html>"},
		{Name: "metadata", Role: RoleJSON, Value: map[string]interface{}{"action": "testing"}},
	})
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, "file", parts[0].Name)
	assert.Equal(t, "metadata", parts[1].Name)

	meta := parts[1].Content.(*FilePart)
	assert.Equal(t, []byte(`{"action":"testing"}`), meta.Value)
	assert.Equal(t, "application/json", meta.Options.ContentType)
}

func TestBuildPartsOmitsAbsentFields(t *testing.T) {
	var noMeta map[string]interface{}
	parts, err := BuildParts([]Field{
		{Name: "file", Role: RoleFile, Value: []byte("x")},
		{Name: "metadata", Role: RoleJSON, Value: noMeta},
		{Name: "other", Role: RoleJSON, Value: nil},
	})
	require.NoError(t, err)
	require.Len(t, parts, 1)
	assert.Equal(t, "file", parts[0].Name)
}

func TestBuildPartsReportsField(t *testing.T) {
	_, err := BuildParts([]Field{{Name: "file", Role: RoleFile, Value: 12}})
	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "file", fe.Field)
}

func TestBuildPartsRequiredField(t *testing.T) {
	_, err := BuildParts([]Field{{Name: "file", Role: RoleFile, Required: true}})
	assert.ErrorIs(t, err, ErrMissing)

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "file", fe.Field)
}

func TestJSONParts(t *testing.T) {
	parts, err := BuildParts([]Field{
		{Name: "body", Role: RoleJSON, Value: map[string]int{"size": 0}},
		{Name: "file", Role: RoleFile, Value: "{\"not\":\"counted\"}"},
	})
	require.NoError(t, err)

	docs, err := JSONParts(parts)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, float64(0), docs[0]["size"])
}

func TestEncode(t *testing.T) {
	named := &namedReader{Reader: strings.NewReader("<p>hi</p>"), name: "/tmp/resources/sampleHtml.html"}
	parts, err := BuildParts([]Field{
		{Name: "file", Role: RoleFile, Value: named},
		{Name: "metadata", Role: RoleJSON, Value: map[string]string{"action": "testing"}},
		{Name: "raw", Role: RoleFile, Value: []byte{1, 2}},
	})
	require.NoError(t, err)

	body, contentType := Encode(parts)
	defer body.Close()

	mediaType, params, err := mime.ParseMediaType(contentType)
	require.NoError(t, err)
	assert.Equal(t, "multipart/form-data", mediaType)

	r := multipart.NewReader(body, params["boundary"])

	p, err := r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "file", p.FormName())
	assert.Equal(t, "sampleHtml.html", p.FileName())
	assert.Equal(t, "text/html; charset=utf-8", p.Header.Get("Content-Type"))
	b, _ := io.ReadAll(p)
	assert.Equal(t, "<p>hi</p>", string(b))

	p, err = r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "metadata", p.FormName())
	assert.Empty(t, p.FileName())
	assert.Equal(t, "application/json", p.Header.Get("Content-Type"))
	b, _ = io.ReadAll(p)
	assert.JSONEq(t, `{"action":"testing"}`, string(b))

	p, err = r.NextPart()
	require.NoError(t, err)
	assert.Equal(t, "_", p.FileName())
	assert.Equal(t, "application/octet-stream", p.Header.Get("Content-Type"))

	_, err = r.NextPart()
	assert.Equal(t, io.EOF, err)
}

func TestEncodeIsLazy(t *testing.T) {
	src := &countingReader{r: strings.NewReader("payload")}
	parts, err := BuildParts([]Field{{Name: "file", Role: RoleFile, Value: src}})
	require.NoError(t, err)
	assert.Zero(t, src.reads, "building parts must not read the stream")

	body, _ := Encode(parts)
	_, err = io.ReadAll(body)
	require.NoError(t, err)
	assert.NotZero(t, src.reads)
}

func TestEncodePropagatesReadErrors(t *testing.T) {
	boom := errors.New("boom")
	parts, err := BuildParts([]Field{{Name: "file", Role: RoleFile, Value: io.MultiReader(strings.NewReader("a"), errReader{boom})}})
	require.NoError(t, err)

	body, _ := Encode(parts)
	_, err = io.ReadAll(body)
	assert.ErrorIs(t, err, boom)
}

type countingReader struct {
	r     io.Reader
	reads int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.reads++
	return c.r.Read(p)
}

type errReader struct{ err error }

func (e errReader) Read([]byte) (int, error) { return 0, e.err }
