package e2e_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"blobgate"
	"blobgate/database"
	"blobgate/filesystem"
	blobhttp "blobgate/http"
)

// gatewayConfig selects the stack a test gateway runs on.
type gatewayConfig struct {
	Backend     blobgate.Backend
	DBType      string // sqlite or postgres
	DBDSN       string // empty means a fresh sqlite file
	BearerToken string
}

// startGateway wires the full stack (database, content adapter, service, HTTP
// handler) and serves it in-process. Returns the base URL.
func startGateway(t *testing.T, cfg gatewayConfig) string {
	t.Helper()
	ctx := context.Background()

	if cfg.DBType == "" {
		cfg.DBType = "sqlite"
	}
	if cfg.DBDSN == "" && cfg.DBType == "sqlite" {
		cfg.DBDSN = filepath.Join(t.TempDir(), "blobgate.db")
	}

	db, err := database.Connect(ctx, database.Config{Type: cfg.DBType, DSN: cfg.DBDSN})
	require.NoError(t, err, "connect database")
	t.Cleanup(db.Close)

	var storage blobgate.Storage
	switch cfg.Backend {
	case blobgate.BackendFS:
		dir := t.TempDir()
		root, err := os.OpenRoot(dir)
		require.NoError(t, err, "open storage root")
		t.Cleanup(func() { _ = root.Close() })
		storage = filesystem.NewFileStorage(root)
	case blobgate.BackendDB:
		storage = db.Blobs
	default:
		t.Fatalf("unsupported e2e backend: %s", cfg.Backend)
	}

	svcCfg := blobgate.ServiceConfig{
		Backend:        cfg.Backend,
		CleanupTimeout: 5 * time.Second,
	}
	if cfg.Backend == blobgate.BackendDB {
		svcCfg.UnitOfWork = db.UnitOfWork
	}

	service, err := blobgate.NewBlobService(db.Metadata, storage, svcCfg)
	require.NoError(t, err, "create service")

	handler := blobhttp.NewHandler(&blobhttp.HandlerConfig{BearerToken: cfg.BearerToken}, service)
	srv := httptest.NewServer(handler.Router())
	t.Cleanup(srv.Close)

	return srv.URL
}

type blobResponse struct {
	ID        string `json:"id"`
	Data      string `json:"data"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"created_at"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func createBlob(t *testing.T, baseURL, token, id string, data []byte) (*http.Response, []byte) {
	t.Helper()

	payload, err := json.Marshal(map[string]string{
		"id":   id,
		"data": base64.StdEncoding.EncodeToString(data),
	})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, baseURL+"/v1/blobs", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return doRequest(t, req)
}

func getBlob(t *testing.T, baseURL, token, id string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/v1/blobs/%s", baseURL, id), nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return doRequest(t, req)
}

// doPost sends a raw JSON body, for malformed-payload cases createBlob cannot
// express.
func doPost(t *testing.T, baseURL, token, rawBody string) (*http.Response, []byte) {
	t.Helper()

	req, err := http.NewRequest(http.MethodPost, baseURL+"/v1/blobs", bytes.NewBufferString(rawBody))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return doRequest(t, req)
}

func doRequest(t *testing.T, req *http.Request) (*http.Response, []byte) {
	t.Helper()

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	require.NoError(t, err, "%s %s", req.Method, req.URL)

	defer func() { _ = resp.Body.Close() }()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err, "read response body")

	return resp, buf.Bytes()
}

func decodeBlob(t *testing.T, body []byte) blobResponse {
	t.Helper()
	var b blobResponse
	require.NoError(t, json.Unmarshal(body, &b))
	return b
}

func decodeErr(t *testing.T, body []byte) errorResponse {
	t.Helper()
	var e errorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}
