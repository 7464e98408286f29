package s3

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"rentalcore/internal/app/policies"
	"rentalcore/internal/pkg/errs"
)

var (
	ErrNotConfigured = errs.Mark(errs.New("s3: object store is not configured"), errs.ErrUpstreamUnavailable)
	ErrInvalidKey    = errs.Mark(errs.New("s3: object key must look like <kind>/<rental id>/<name>"), errs.ErrValidation)
	errNoReader      = errs.New("s3: reader is required")
)

// PublicPrefixes are readable without credentials. The slip OCR service
// fetches slips by URL; return photos are shown to both parties.
var PublicPrefixes = []string{"slips", "returns"}

// Options locate the bucket. PublicEndpoint is the host clients use to read
// objects and defaults to Endpoint.
type Options struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

// Client stores rental images in an S3-compatible bucket.
type Client struct {
	bucket    string
	publicURL *url.URL
	client    *minio.Client
	logger    *slog.Logger

	mu    sync.Mutex
	ready bool
}

func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		return nil, errs.New("s3: endpoint is required")
	}
	bucket := strings.TrimSpace(opts.Bucket)
	if bucket == "" {
		return nil, errs.New("s3: bucket is required")
	}
	mc, err := minio.New(hostOf(endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(opts.AccessKey), strings.TrimSpace(opts.SecretKey), ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, errs.Wrap(err, "s3: create client")
	}
	public, err := baseURL(opts.PublicEndpoint, endpoint, opts.UseSSL)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{bucket: bucket, publicURL: public, client: mc, logger: logger}, nil
}

// Upload stores an image under key and returns its public URL. The kind and
// rental id encoded in the key are attached as object metadata.
func (c *Client) Upload(ctx context.Context, key string, reader io.Reader, contentType string) (string, error) {
	if reader == nil {
		return "", errNoReader
	}
	key = strings.Trim(strings.TrimSpace(key), "/")
	kind, rentalID, ok := splitKey(key)
	if !ok {
		return "", ErrInvalidKey
	}
	if err := c.ensureBucket(ctx); err != nil {
		return "", errs.Mark(err, errs.ErrUpstreamUnavailable)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	info, err := c.client.PutObject(ctx, c.bucket, key, reader, sizeOf(reader), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
		UserMetadata: map[string]string{"kind": kind, "rental-id": rentalID},
	})
	if err != nil {
		return "", errs.Mark(errs.Wrap(err, "s3: put object"), errs.ErrUpstreamUnavailable)
	}
	location := c.objectURL(key)
	c.logger.InfoContext(ctx, "image stored", "bucket", c.bucket, "kind", kind, "rental_id", rentalID, "size", info.Size, "url", location)
	return location, nil
}

// Ping checks that the bucket is reachable.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.BucketExists(ctx, c.bucket)
	return err
}

// ensureBucket creates the bucket on first use. A failed attempt is retried
// on the next upload.
func (c *Client) ensureBucket(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return errs.Wrap(err, "s3: check bucket")
	}
	if !exists {
		if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{}); err != nil {
			return errs.Wrap(err, "s3: create bucket")
		}
	}
	if err := c.client.SetBucketPolicy(ctx, c.bucket, ReadPolicy(c.bucket, PublicPrefixes...)); err != nil {
		return errs.Wrap(err, "s3: set bucket policy")
	}
	c.ready = true
	return nil
}

// ReadPolicy allows anonymous GET on the given key prefixes of bucket.
func ReadPolicy(bucket string, prefixes ...string) string {
	resources := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		resources = append(resources, fmt.Sprintf("%q", "arn:aws:s3:::"+bucket+"/"+strings.Trim(p, "/")+"/*"))
	}
	return `{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":[` +
		strings.Join(resources, ",") + `]}]}`
}

func (c *Client) objectURL(key string) string {
	return c.publicURL.JoinPath(c.bucket, key).String()
}

// splitKey reads "<kind>/<rental id>/<name>".
func splitKey(key string) (kind, rentalID string, ok bool) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return "", "", false
	}
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			return "", "", false
		}
	}
	return parts[0], parts[1], true
}

// sizeOf lets minio skip multipart buffering when the length is known.
func sizeOf(r io.Reader) int64 {
	if l, ok := r.(interface{ Len() int }); ok {
		return int64(l.Len())
	}
	return -1
}

func hostOf(endpoint string) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
		return parsed.Host
	}
	return endpoint
}

func baseURL(public, endpoint string, useSSL bool) (*url.URL, error) {
	raw := strings.TrimRight(strings.TrimSpace(public), "/")
	if raw == "" {
		raw = endpoint
	}
	if !strings.Contains(raw, "://") {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		raw = scheme + "://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return nil, errs.Newf("s3: invalid public endpoint %q", raw)
	}
	return u, nil
}

// NoopUploader fails every upload; used when no bucket is configured and
// in-memory storage is not wanted.
type NoopUploader struct{}

func (NoopUploader) Upload(context.Context, string, io.Reader, string) (string, error) {
	return "", ErrNotConfigured
}

var (
	_ policies.ObjectStore = (*Client)(nil)
	_ policies.ObjectStore = NoopUploader{}
)
