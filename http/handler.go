// Package http provides the REST surface over the blob service: a create
// endpoint, a read endpoint, bearer-token authentication, and the JSON error
// contract.
package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"blobgate"
)

// Service is the slice of the blob service the handlers need.
type Service interface {
	Save(ctx context.Context, id string, dataB64 string) (blobgate.Blob, error)
	Get(ctx context.Context, id string) (blobgate.Blob, error)
}

type CORSConfig struct {
	Enabled          bool     `mapstructure:"enabled"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	ExposedHeaders   []string `mapstructure:"exposed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type HandlerConfig struct {
	// BearerToken guards both endpoints; empty disables authentication.
	BearerToken string
	CORS        CORSConfig
}

// Handler provides HTTP handlers for blob operations.
type Handler struct {
	config  HandlerConfig
	service Service
}

// NewHandler creates a new Handler with the given configuration and service.
func NewHandler(config *HandlerConfig, service Service) *Handler {
	return &Handler{
		config:  *config,
		service: service,
	}
}

// Router returns an http.Handler with the blob routes mounted under /v1/blobs.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	if h.config.CORS.Enabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORS.AllowedOrigins,
			AllowedMethods:   h.config.CORS.AllowedMethods,
			AllowedHeaders:   h.config.CORS.AllowedHeaders,
			ExposedHeaders:   h.config.CORS.ExposedHeaders,
			AllowCredentials: h.config.CORS.AllowCredentials,
			MaxAge:           h.config.CORS.MaxAge,
		}))
	}

	r.Route("/v1/blobs", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(h.config.BearerToken))
		r.Post("/", h.handleCreate)
		r.Get("/*", h.handleGet)
	})

	return r
}

type createRequest struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

type blobResponse struct {
	ID        string `json:"id"`
	Data      string `json:"data"`
	Size      int64  `json:"size"`
	CreatedAt string `json:"created_at"`
}

func toResponse(b blobgate.Blob) blobResponse {
	return blobResponse{
		ID:        b.ID,
		Data:      base64.StdEncoding.EncodeToString(b.Data),
		Size:      b.Size,
		CreatedAt: blobgate.FormatTimestamp(b.CreatedAt),
	}
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body")
		return
	}

	blob, err := h.service.Save(r.Context(), req.ID, req.Data)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusCreated, toResponse(blob))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	// Wildcard so ids containing slashes resolve.
	id := chi.URLParam(r, "*")

	blob, err := h.service.Get(r.Context(), id)
	if err != nil {
		HandleError(w, err)
		return
	}

	_ = WriteJSON(w, http.StatusOK, toResponse(blob))
}
