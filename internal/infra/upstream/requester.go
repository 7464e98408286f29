// Package upstream holds the HTTP clients of the marketplace collaborators.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"rentalcore/internal/pkg/errs"
)

var (
	ErrUnavailable = errs.Mark(errs.New("upstream: service unavailable"), errs.ErrUpstreamUnavailable)
	ErrNotFound    = errs.Mark(errs.New("upstream: resource not found"), errs.ErrNotFound)
	ErrRejected    = errs.Mark(errs.New("upstream: request rejected"), errs.ErrValidation)
	ErrConflict    = errs.Mark(errs.New("upstream: conflict"), errs.ErrDateRangeConflict)
	ErrForbidden   = errs.Mark(errs.New("upstream: forbidden"), errs.ErrForbidden)
)

const maxErrorBody = 64 << 10

// ResponseError keeps the status and body of a failed call. Its category
// comes from the wrapped sentinel.
type ResponseError struct {
	Status int
	Body   []byte
	err    error
}

func (e *ResponseError) Error() string { return e.err.Error() }

func (e *ResponseError) Unwrap() error { return e.err }

// Requester performs JSON calls against one base URL. GETs are retried with
// Backoff on transport errors, 429 and 5xx; POSTs are sent once.
type Requester struct {
	BaseURL string
	HTTP    *http.Client
	Backoff []time.Duration
	Logger  *slog.Logger
	Name    string
	// Header is added to every request.
	Header http.Header
}

func NewRequester(name, baseURL string, timeout time.Duration, backoff []time.Duration, logger *slog.Logger) *Requester {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Requester{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
		Backoff: backoff,
		Logger:  logger,
		Name:    name,
	}
}

// GetJSON decodes the response of GET path?query into out.
func (r *Requester) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	target := r.url(path, query)
	var lastErr error
	for attempt := 0; ; attempt++ {
		wait, err := r.do(ctx, http.MethodGet, target, nil, nil, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !errs.Is(err, errs.ErrUpstreamUnavailable) || attempt >= len(r.Backoff) {
			return lastErr
		}
		if wait < r.Backoff[attempt] {
			wait = r.Backoff[attempt]
		}
		r.logger().WarnContext(ctx, "upstream get failed, retrying", "upstream", r.Name, "url", target, "attempt", attempt+1, "wait", wait, "error", err)
		select {
		case <-ctx.Done():
			return errs.WithSecondary(errs.Mark(ctx.Err(), errs.ErrUpstreamUnavailable), lastErr)
		case <-time.After(wait):
		}
	}
}

// PostJSON sends in as JSON and decodes the response into out.
func (r *Requester) PostJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return errs.Wrap(err, "upstream: encode request")
	}
	_, err = r.do(ctx, http.MethodPost, r.url(path, nil), body, http.Header{"Content-Type": {"application/json"}}, out)
	return err
}

// Send issues a single request with a prepared body. It is never retried.
func (r *Requester) Send(ctx context.Context, method, path string, header http.Header, body []byte, out any) error {
	_, err := r.do(ctx, method, r.url(path, nil), body, header, out)
	return err
}

func (r *Requester) do(ctx context.Context, method, target string, body []byte, header http.Header, out any) (time.Duration, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, errs.Wrap(err, "upstream: build request")
	}
	req.Header.Set("Accept", "application/json")
	for _, h := range []http.Header{r.Header, header} {
		for k, vs := range h {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}
	resp, err := r.HTTP.Do(req)
	if err != nil {
		return 0, errs.WithSecondary(errs.Wrapf(ErrUnavailable, "%s %s", r.Name, method), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		wait, err := r.statusError(resp, target, raw)
		return wait, &ResponseError{Status: resp.StatusCode, Body: raw, err: err}
	}
	if out == nil {
		return 0, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, errs.WithSecondary(errs.Wrapf(ErrUnavailable, "%s: decode response", r.Name), err)
	}
	return 0, nil
}

func (r *Requester) statusError(resp *http.Response, target string, raw []byte) (time.Duration, error) {
	switch code := resp.StatusCode; {
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		return retryAfter(resp.Header.Get("Retry-After")), errs.Wrapf(ErrUnavailable, "%s returned %d: %s", r.Name, code, snippet(raw))
	case code == http.StatusNotFound:
		return 0, errs.Wrapf(ErrNotFound, "%s %s", r.Name, target)
	case code == http.StatusConflict:
		return 0, errs.Wrapf(ErrConflict, "%s returned %d: %s", r.Name, code, snippet(raw))
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return 0, errs.Wrapf(ErrForbidden, "%s returned %d: %s", r.Name, code, snippet(raw))
	default:
		return 0, errs.Wrapf(ErrRejected, "%s returned %d: %s", r.Name, code, snippet(raw))
	}
}

func (r *Requester) url(path string, query url.Values) string {
	target := r.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

func (r *Requester) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return 0
}

func snippet(raw []byte) string {
	if len(raw) > 512 {
		raw = raw[:512]
	}
	return strings.TrimSpace(string(raw))
}

// PathEscape joins escaped segments onto a path.
func PathEscape(format string, segments ...string) string {
	args := make([]any, len(segments))
	for i, s := range segments {
		args[i] = url.PathEscape(s)
	}
	return fmt.Sprintf(format, args...)
}
