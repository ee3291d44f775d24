package blobgate

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

const (
	SignatureAlgorithm = "AWS4-HMAC-SHA256"
	// UnsignedPayload is the sentinel payload hash for requests whose body is
	// not hashed up front.
	UnsignedPayload = "UNSIGNED-PAYLOAD"
	DateTimeFormat  = "20060102T150405Z"
	DateFormat      = "20060102"

	signingService = "s3"
)

// Signer produces AWS Signature V4 headers for requests against an
// S3-compatible object store. It implements the signing side of the protocol
// from primitives; byte-for-byte agreement with the standard is required for
// any compliant server to accept the result.
type Signer struct {
	Region       string
	AccessKey    string
	SecretKey    string
	SessionToken string

	// Now overrides the clock; nil means time.Now. Tests pin it to verify
	// signatures against the published SigV4 vectors.
	Now func() time.Time
}

// NewSigner creates a signer scoped to a region and credential set.
// sessionToken may be empty for long-lived credentials.
func NewSigner(region, accessKey, secretKey, sessionToken string) *Signer {
	return &Signer{
		Region:       region,
		AccessKey:    accessKey,
		SecretKey:    secretKey,
		SessionToken: sessionToken,
	}
}

// Sign computes the header set that authenticates a single request.
//
// extraHeaders are merged into the signed set (keys are lower-cased); pass nil
// when none. payloadHash is the hex SHA-256 of the request body, or
// UnsignedPayload when the body is not hashed; the empty string means
// UnsignedPayload. The returned map contains Authorization plus every header
// that was signed (host, x-amz-date, x-amz-content-sha256, and
// x-amz-security-token when a session token is configured) and is ready to
// attach to the outbound request.
func (s *Signer) Sign(method, rawURL string, extraHeaders map[string]string, payloadHash string) (map[string]string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("sign: parse url: %w", err)
	}

	if payloadHash == "" {
		payloadHash = UnsignedPayload
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	t := now().UTC()
	amzDate := t.Format(DateTimeFormat)
	dateStamp := t.Format(DateFormat)
	scope := fmt.Sprintf("%s/%s/%s/aws4_request", dateStamp, s.Region, signingService)

	headers := map[string]string{
		"host":                 u.Host,
		"x-amz-date":           amzDate,
		"x-amz-content-sha256": payloadHash,
	}
	for k, v := range extraHeaders {
		headers[strings.ToLower(k)] = v
	}
	if s.SessionToken != "" {
		headers["x-amz-security-token"] = s.SessionToken
	}

	// One canonicalization pass feeds both the canonical request and the
	// SignedHeaders value, so the two always enumerate the same header set
	// in the same order.
	canonicalHeaders, signedHeaders := canonicalizeHeaders(headers)

	canonicalRequest := strings.Join([]string{
		strings.ToUpper(method),
		canonicalURI(u.Path),
		"", // canonical query string; gateway requests carry none
		canonicalHeaders,
		signedHeaders,
		payloadHash,
	}, "\n")

	stringToSign := strings.Join([]string{
		SignatureAlgorithm,
		amzDate,
		scope,
		sha256Hash(canonicalRequest),
	}, "\n")

	signingKey := deriveSigningKey(s.SecretKey, dateStamp, s.Region)
	signature := hex.EncodeToString(hmacSHA256(signingKey, []byte(stringToSign)))

	headers["Authorization"] = fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		SignatureAlgorithm, s.AccessKey, scope, signedHeaders, signature)

	return headers, nil
}

// canonicalizeHeaders lower-cases names, collapses internal whitespace in
// values, and sorts lexicographically. It returns the canonical headers block
// (one "name:value\n" line per header) and the ";"-joined signed-headers list.
func canonicalizeHeaders(headers map[string]string) (string, string) {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, strings.ToLower(name))
	}
	sort.Strings(names)

	var block strings.Builder
	for _, name := range names {
		value := strings.Join(strings.Fields(headers[name]), " ")
		block.WriteString(name)
		block.WriteString(":")
		block.WriteString(value)
		block.WriteString("\n")
	}
	return block.String(), strings.Join(names, ";")
}

// canonicalURI percent-encodes the URL path, leaving the unreserved characters
// and the path separator intact.
func canonicalURI(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	const upperhex = "0123456789ABCDEF"
	var b strings.Builder
	for i := 0; i < len(path); i++ {
		c := path[i]
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

func deriveSigningKey(secretKey, dateStamp, region string) []byte {
	kDate := hmacSHA256([]byte("AWS4"+secretKey), []byte(dateStamp))
	kRegion := hmacSHA256(kDate, []byte(region))
	kService := hmacSHA256(kRegion, []byte(signingService))
	return hmacSHA256(kService, []byte("aws4_request"))
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

func sha256Hash(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}
