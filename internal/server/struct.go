package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/Rafael-Dagostim/studyflow-go/internal/filegen"
	"github.com/Rafael-Dagostim/studyflow-go/internal/ingest"
	"github.com/Rafael-Dagostim/studyflow-go/internal/memory"
	"github.com/Rafael-Dagostim/studyflow-go/internal/provider"
	"github.com/Rafael-Dagostim/studyflow-go/internal/rag"
	"github.com/Rafael-Dagostim/studyflow-go/internal/store"
)

// OwnershipChecker verifies that the owner may act on the project.
// Authentication itself happens upstream; the server only consults this
// hook. A nil checker allows everything (development mode).
type OwnershipChecker func(ctx context.Context, ownerID, projectID string) error

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, a logger is built from the environment.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// CheckOwnership validates project access on the streaming session.
	CheckOwnership OwnershipChecker
}

// Server is the HTTP server exposing the StudyFlow core: the websocket
// streaming session, file generation endpoints, ingestion triggers, health
// probes, and Prometheus metrics.
type Server struct {
	// cfg holds the resolved server configuration.
	cfg *Config
	// store is the relational store.
	store store.Store
	// engine answers RAG queries.
	engine *rag.Engine
	// memory builds conversation context for sessions.
	memory *memory.Manager
	// model streams chat completions for sessions.
	model provider.ChatModel
	// coordinator drives document ingestion.
	coordinator *ingest.Coordinator
	// generator produces versioned artifacts.
	generator *filegen.Generator
	// hub fans progress events out to connected owners.
	hub *progressHub
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// metrics holds the Prometheus instruments for this instance.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine.
	stopRL func()
}

// Deps bundles the core subsystems the server exposes.
type Deps struct {
	// Store is the relational store.
	Store store.Store
	// Engine answers RAG queries.
	Engine *rag.Engine
	// Memory builds conversation context for sessions.
	Memory *memory.Manager
	// Model streams chat completions.
	Model provider.ChatModel
	// Coordinator drives document ingestion.
	Coordinator *ingest.Coordinator
	// Generator produces versioned artifacts.
	Generator *filegen.Generator
}

// createFileRequest is the JSON body for POST /api/files.
type createFileRequest struct {
	// ProjectID is the owning project.
	ProjectID string `json:"projectId"`
	// OwnerID is the requesting teacher.
	OwnerID string `json:"ownerId"`
	// Prompt is the generation request.
	Prompt string `json:"prompt"`
	// DisplayName is the human-facing file name.
	DisplayName string `json:"displayName"`
	// FileType is the artifact kind.
	FileType string `json:"fileType"`
	// Format is "pdf" or "markdown".
	Format string `json:"format"`
}

// ingestRequest is the JSON body for POST /api/ingest.
type ingestRequest struct {
	// ProjectID ingests every unprocessed document of the project.
	ProjectID string `json:"projectId,omitempty"`
	// DocumentID ingests a single document.
	DocumentID string `json:"documentId,omitempty"`
	// Reingest forces a drop-and-rebuild of the document's chunks.
	Reingest bool `json:"reingest,omitempty"`
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	// Error is the human-readable message.
	Error string `json:"error"`
	// Code is the stable error code when available.
	Code string `json:"code,omitempty"`
}
