package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalcore/internal/pkg/errs"
)

func TestNewClientBuildsPublicURLs(t *testing.T) {
	c, err := NewClient(Options{Endpoint: "minio:9000", PublicEndpoint: "https://cdn.example.com/", Bucket: "uploads"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/uploads/slips/r1/a.png", c.objectURL("slips/r1/a.png"))

	local, err := NewClient(Options{Endpoint: "http://localhost:9000", Bucket: "uploads"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:9000/uploads/returns/r1/b.jpg", local.objectURL("returns/r1/b.jpg"))

	_, err = NewClient(Options{Bucket: "uploads"}, nil)
	assert.Error(t, err)
	_, err = NewClient(Options{Endpoint: "minio:9000", Bucket: " "}, nil)
	assert.Error(t, err)
}

func TestUploadRejectsMalformedKeys(t *testing.T) {
	c, err := NewClient(Options{Endpoint: "minio:9000", Bucket: "uploads"}, nil)
	require.NoError(t, err)

	for _, key := range []string{"a.png", "slips/a.png", "slips/r1/../a.png", "slips//a.png", "slips/r1/x/a.png"} {
		_, err := c.Upload(context.Background(), key, strings.NewReader("x"), "image/png")
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestSplitKey(t *testing.T) {
	kind, id, ok := splitKey("slips/r-42/5f.png")
	require.True(t, ok)
	assert.Equal(t, "slips", kind)
	assert.Equal(t, "r-42", id)
}

func TestReadPolicyCoversPrefixes(t *testing.T) {
	var doc struct {
		Statement []struct {
			Action   []string
			Resource []string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(ReadPolicy("uploads", PublicPrefixes...)), &doc))
	require.Len(t, doc.Statement, 1)
	assert.Equal(t, []string{"s3:GetObject"}, doc.Statement[0].Action)
	assert.Equal(t, []string{"arn:aws:s3:::uploads/slips/*", "arn:aws:s3:::uploads/returns/*"}, doc.Statement[0].Resource)
}

func TestSizeOf(t *testing.T) {
	assert.Equal(t, int64(3), sizeOf(bytes.NewReader([]byte("png"))))
	assert.Equal(t, int64(-1), sizeOf(io.MultiReader(strings.NewReader("png"))))
}

func TestNoopUploader(t *testing.T) {
	_, err := NoopUploader{}.Upload(context.Background(), "slips/r1/a.png", strings.NewReader("x"), "image/png")
	assert.True(t, errs.Is(err, errs.ErrUpstreamUnavailable))
}
