package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RegistryAccord/discovery-go/internal/form"
)

type fakeGetter struct {
	calls   int
	objects map[string]string
}

func (f *fakeGetter) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.calls++
	body, ok := f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return &s3.GetObjectOutput{
		Body:        io.NopCloser(strings.NewReader(body)),
		ContentType: aws.String("text/html"),
	}, nil
}

func TestSourceIsLazy(t *testing.T) {
	getter := &fakeGetter{objects: map[string]string{"docs/in/sampleHtml.html": "<html></html>"}}
	src := NewS3ClientWith(getter).Open(context.Background(), "docs", "in/sampleHtml.html")

	got, err := form.Normalize(src)
	require.NoError(t, err)
	assert.Same(t, src, got, "named sources pass through")
	assert.Zero(t, getter.calls)

	b, err := io.ReadAll(src)
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(b))
	assert.Equal(t, 1, getter.calls)
	assert.Equal(t, "text/html", src.ContentType())
	assert.Equal(t, "s3://docs/in/sampleHtml.html", src.URI())
	assert.NoError(t, src.Close())
}

func TestSourceMissingObject(t *testing.T) {
	src := NewS3ClientWith(&fakeGetter{}).Open(context.Background(), "docs", "missing.pdf")
	_, err := io.ReadAll(src)
	assert.ErrorContains(t, err, "s3://docs/missing.pdf")
	assert.NoError(t, src.Close())
}

func TestParseURI(t *testing.T) {
	tests := []struct {
		in          string
		bucket, key string
		ok          bool
	}{
		{"s3://docs/a/b.pdf", "docs", "a/b.pdf", true},
		{"s3://docs/", "", "", false},
		{"s3://docs", "", "", false},
		{"/tmp/file.pdf", "", "", false},
	}
	for _, tt := range tests {
		bucket, key, ok := ParseURI(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.bucket, bucket, tt.in)
		assert.Equal(t, tt.key, key, tt.in)
	}
}
