// Package server implements the HTTP server that exposes the StudyFlow
// core: a websocket streaming session for grounded chat, file generation
// and download endpoints, ingestion triggers, health probes, and
// Prometheus metrics. The server is started by the `studyflow serve` CLI
// command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
	"github.com/Rafael-Dagostim/studyflow-go/internal/filegen"
	"github.com/Rafael-Dagostim/studyflow-go/internal/logging"
	"github.com/Rafael-Dagostim/studyflow-go/internal/rag"
)

// maxBodyBytes is the maximum allowed size for JSON request bodies.
const maxBodyBytes = 1 << 20 // 1 MiB

// New constructs a Server from the core subsystems and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Store == nil || deps.Engine == nil || deps.Memory == nil || deps.Model == nil ||
		deps.Coordinator == nil || deps.Generator == nil {
		return nil, fmt.Errorf("server: all dependencies must be non-nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must be long enough for long-running generations.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}

	registry := prometheus.NewRegistry()
	s := &Server{
		cfg:         cfg,
		store:       deps.Store,
		engine:      deps.Engine,
		memory:      deps.Memory,
		model:       deps.Model,
		coordinator: deps.Coordinator,
		generator:   deps.Generator,
		hub:         newProgressHub(),
		log:         cfg.Logger,
		metrics:     newServerMetrics(registry),
	}

	limiter, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stop

	mux := http.NewServeMux()
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	protected := func(name string, h http.HandlerFunc) http.Handler {
		return s.instrument(name, s.requireAPIKey(limiter.middleware(h)))
	}
	mux.Handle("GET /ws/chat", s.instrument("ws_chat", s.requireAPIKey(http.HandlerFunc(s.handleChatSocket))))
	mux.Handle("POST /api/query", protected("query", s.handleQuery))
	mux.Handle("POST /api/ingest", protected("ingest", s.handleIngest))
	mux.Handle("POST /api/files", protected("files_create", s.handleCreateFile))
	mux.Handle("GET /api/projects/{id}/files", protected("files_list", s.handleListFiles))
	mux.Handle("GET /api/files/{id}/download", protected("files_download", s.handleDownloadFile))
	mux.Handle("DELETE /api/files/{id}", protected("files_delete", s.handleDeleteFile))
	mux.Handle("DELETE /api/files/{id}/versions/{version}", protected("versions_cancel", s.handleCancelVersion))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Notifier returns the hub used to forward file generation progress to
// connected owners; pass it to the file generator.
func (s *Server) Notifier() filegen.Notifier { return s.hub }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// ProjectID is the project to query.
	ProjectID string `json:"projectId"`
	// Question is the user's text.
	Question string `json:"question"`
	// Type optionally selects an educational rewrite: question, summary,
	// quiz, or explanation.
	Type string `json:"type,omitempty"`
	// ConversationID optionally scopes the query to a conversation.
	ConversationID string `json:"conversationId,omitempty"`
}

// handleQuery answers a one-shot RAG query.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProjectID == "" || req.Question == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("projectId and question are required"))
		return
	}

	kind := rag.EducationalType(req.Type)
	if req.Type == "" {
		kind = rag.EducationalQuestion
	}
	res, err := s.engine.EducationalQuery(logging.WithLogger(r.Context(), s.log),
		req.ProjectID, req.Question, kind, req.ConversationID)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleIngest triggers ingestion of a document or a whole project.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx := logging.WithLogger(r.Context(), s.log)

	switch {
	case req.DocumentID != "":
		var err error
		var result any
		if req.Reingest {
			result, err = s.coordinator.Reingest(ctx, req.DocumentID)
		} else {
			result, err = s.coordinator.Ingest(ctx, req.DocumentID)
		}
		if err != nil {
			s.metrics.ingestTotal.WithLabelValues("error").Inc()
			writeCoreError(w, err)
			return
		}
		s.metrics.ingestTotal.WithLabelValues("ok").Inc()
		writeJSON(w, http.StatusOK, result)

	case req.ProjectID != "":
		results, err := s.coordinator.IngestProject(ctx, req.ProjectID)
		if err != nil {
			writeCoreError(w, err)
			return
		}
		for _, res := range results {
			if res.Error != "" {
				s.metrics.ingestTotal.WithLabelValues("error").Inc()
			} else {
				s.metrics.ingestTotal.WithLabelValues("ok").Inc()
			}
		}
		writeJSON(w, http.StatusOK, results)

	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("projectId or documentId is required"))
	}
}

// handleCreateFile launches a file generation job and returns the file
// record immediately.
func (s *Server) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	var req createFileRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.ProjectID == "" || req.Prompt == "" || req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("projectId, prompt, and displayName are required"))
		return
	}
	format := core.FileFormat(req.Format)
	if format != core.FormatPDF && format != core.FormatMarkdown {
		writeError(w, http.StatusBadRequest, fmt.Errorf("format must be pdf or markdown"))
		return
	}

	file, err := s.generator.CreateFile(r.Context(), filegen.CreateParams{
		ProjectID:   req.ProjectID,
		OwnerID:     req.OwnerID,
		Prompt:      req.Prompt,
		DisplayName: req.DisplayName,
		Type:        core.FileType(req.FileType),
		Format:      format,
	})
	if err != nil {
		s.metrics.generationTotal.WithLabelValues("error").Inc()
		writeCoreError(w, err)
		return
	}
	s.metrics.generationTotal.WithLabelValues("launched").Inc()
	writeJSON(w, http.StatusAccepted, file)
}

// handleListFiles returns a project's generated files with their version
// histories.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.store.ListFiles(r.Context(), r.PathValue("id"))
	if err != nil {
		writeCoreError(w, err)
		return
	}
	type fileWithVersions struct {
		*core.GeneratedFile
		Versions []*core.GeneratedFileVersion `json:"versions"`
	}
	out := make([]fileWithVersions, 0, len(files))
	for _, f := range files {
		versions, err := s.store.ListVersions(r.Context(), f.ID)
		if err != nil {
			writeCoreError(w, err)
			return
		}
		out = append(out, fileWithVersions{GeneratedFile: f, Versions: versions})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleDownloadFile streams a generated artifact.
func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	fileID := r.PathValue("id")
	version := 0
	if v := r.URL.Query().Get("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, fmt.Errorf("invalid version %q", v))
			return
		}
		version = n
	}

	data, name, contentType, err := s.generator.Download(r.Context(), fileID, version)
	if err != nil {
		writeCoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Write(data)
}

// handleDeleteFile removes a generated file with all of its versions.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.generator.DeleteFile(r.Context(), r.PathValue("id")); err != nil {
		writeCoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCancelVersion cancels an in-flight generation job, marking the
// version failed.
func (s *Server) handleCancelVersion(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.Atoi(r.PathValue("version"))
	if err != nil || version < 1 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid version"))
		return
	}
	if err := s.generator.CancelVersion(r.Context(), r.PathValue("id"), version); err != nil {
		writeCoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeBody decodes a bounded JSON request body, writing a 400 on
// failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error envelope.
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// writeCoreError maps a core error code to an HTTP status.
func writeCoreError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch core.CodeOf(err) {
	case core.CodeNotFound:
		status = http.StatusNotFound
	case core.CodeNotIndexed, core.CodeUnsupportedFormat, core.CodeEmptyContent:
		status = http.StatusUnprocessableEntity
	case core.CodeEmbeddingUnavailable, core.CodeVectorStoreUnavailable:
		status = http.StatusBadGateway
	case core.CodeCancelled:
		status = http.StatusRequestTimeout
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Code: string(core.CodeOf(err))})
}
