// Package s3 provides the content adapter for a self-hosted, S3-compatible
// object store spoken to over plain HTTP. Every request is authenticated with
// the root package's Signature V4 signer; no SDK is involved.
package s3

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"blobgate"
)

// Config holds the object-store connection settings.
type Config struct {
	Endpoint       string
	Region         string
	Bucket         string
	AccessKey      string
	SecretKey      string
	SessionToken   string
	ForcePathStyle bool
	// Timeout bounds each request so a slow backend cannot stall unrelated
	// requests (default 10s).
	Timeout time.Duration
}

// Store implements blobgate.Storage against an S3-compatible endpoint.
type Store struct {
	bucketBase string
	signer     *blobgate.Signer
	client     *http.Client
}

// NewStore creates a Store. Endpoint and bucket are required.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("new s3 store: endpoint and bucket must be configured")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Store{
		bucketBase: bucketBase(strings.TrimRight(cfg.Endpoint, "/"), cfg.Bucket, cfg.ForcePathStyle),
		signer:     blobgate.NewSigner(cfg.Region, cfg.AccessKey, cfg.SecretKey, cfg.SessionToken),
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// bucketBase resolves the bucket URL: path-style appends the bucket to the
// endpoint, virtual-host style prefixes it to the endpoint host.
func bucketBase(endpoint, bucket string, pathStyle bool) string {
	if pathStyle {
		return endpoint + "/" + bucket
	}
	if scheme, rest, ok := strings.Cut(endpoint, "://"); ok {
		return scheme + "://" + bucket + "." + rest
	}
	return "https://" + bucket + "." + endpoint
}

func (s *Store) objectURL(id string) string {
	return s.bucketBase + "/" + encodeKey(blobgate.StorageKey(id))
}

// Save uploads blob content. Existence is checked with a metadata-only HEAD
// before the upload; the PUT itself is a single request, so two concurrent
// saves for the same id can race past the check (last writer wins, and the
// metadata uniqueness constraint remains the final arbiter).
func (s *Store) Save(ctx context.Context, id string, data []byte) (blobgate.SaveResult, error) {
	url := s.objectURL(id)

	exists, err := s.exists(ctx, url)
	if err != nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: %w", id, err)
	}
	if exists {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: %w: content already exists", id, blobgate.ErrConflict)
	}

	payloadHash := sha256Hex(data)
	extra := map[string]string{
		"content-type":   "application/octet-stream",
		"content-length": strconv.Itoa(len(data)),
	}

	resp, err := s.do(ctx, http.MethodPut, url, extra, payloadHash, bytes.NewReader(data))
	if err != nil {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: %w", id, err)
	}
	defer drainAndClose(resp)

	if resp.StatusCode >= 300 {
		return blobgate.SaveResult{}, fmt.Errorf("save %q: %w", id, statusError("PUT", resp))
	}

	return blobgate.SaveResult{
		Size:      int64(len(data)),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Get downloads blob content. The creation timestamp comes from the
// Last-Modified response header, falling back to the current time when absent
// or unparsable.
func (s *Store) Get(ctx context.Context, id string) (blobgate.Object, error) {
	resp, err := s.do(ctx, http.MethodGet, s.objectURL(id), nil, "", nil)
	if err != nil {
		return blobgate.Object{}, fmt.Errorf("get %q: %w", id, err)
	}
	defer drainAndClose(resp)

	if resp.StatusCode == http.StatusNotFound {
		return blobgate.Object{}, fmt.Errorf("get %q: %w", id, blobgate.ErrNotFound)
	}
	if resp.StatusCode >= 300 {
		return blobgate.Object{}, fmt.Errorf("get %q: %w", id, statusError("GET", resp))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return blobgate.Object{}, fmt.Errorf("get %q: read body: %w", id, err)
	}

	createdAt := time.Now().UTC()
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, parseErr := http.ParseTime(lm); parseErr == nil {
			createdAt = t.UTC()
		}
	}

	return blobgate.Object{
		Data:      data,
		Size:      int64(len(data)),
		CreatedAt: createdAt,
	}, nil
}

// Delete removes blob content. A 404 from the backend is success.
func (s *Store) Delete(ctx context.Context, id string) error {
	resp, err := s.do(ctx, http.MethodDelete, s.objectURL(id), nil, "", nil)
	if err != nil {
		return fmt.Errorf("delete %q: %w", id, err)
	}
	defer drainAndClose(resp)

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted, http.StatusNoContent, http.StatusNotFound:
		return nil
	default:
		return fmt.Errorf("delete %q: %w", id, statusError("DELETE", resp))
	}
}

// exists probes the final key with a signed HEAD request.
func (s *Store) exists(ctx context.Context, url string) (bool, error) {
	resp, err := s.do(ctx, http.MethodHead, url, nil, "", nil)
	if err != nil {
		return false, err
	}
	defer drainAndClose(resp)

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode >= 300 {
		return false, statusError("HEAD", resp)
	}
	return true, nil
}

// do signs and executes one request.
func (s *Store) do(ctx context.Context, method, url string, extraHeaders map[string]string, payloadHash string, body io.Reader) (*http.Response, error) {
	signed, err := s.signer.Sign(method, url, extraHeaders, payloadHash)
	if err != nil {
		return nil, fmt.Errorf("sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range signed {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", method, err)
	}
	return resp, nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("s3 %s failed %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

// encodeKey percent-encodes an object key for use in a URL path, leaving the
// unreserved characters and the path separator intact.
func encodeKey(key string) string {
	const upperhex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case 'A' <= c && c <= 'Z', 'a' <= c && c <= 'z', '0' <= c && c <= '9':
			b.WriteByte(c)
		case c == '/' || c == '-' || c == '_' || c == '.' || c == '~':
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&0xf])
		}
	}
	return b.String()
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
