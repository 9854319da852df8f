package filegen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
	"github.com/Rafael-Dagostim/studyflow-go/internal/objstore"
	"github.com/Rafael-Dagostim/studyflow-go/internal/provider"
	"github.com/Rafael-Dagostim/studyflow-go/internal/rag"
	"github.com/Rafael-Dagostim/studyflow-go/internal/store"
)

// ProgressEvent is one generation progress update delivered to the file's
// owner through an out-of-band channel.
type ProgressEvent struct {
	// FileID is the generated file.
	FileID string `json:"fileId"`
	// Version is the version being generated.
	Version int `json:"version"`
	// Status is the job status.
	Status core.JobStatus `json:"status"`
	// Progress is a 0–100 completion estimate.
	Progress int `json:"progress"`
	// Message carries the failure description when Status is failed.
	Message string `json:"message,omitempty"`
}

// Notifier delivers progress events to a file owner. The streaming server
// provides a websocket-backed implementation; NopNotifier drops events.
type Notifier interface {
	NotifyProgress(ownerID string, event ProgressEvent)
}

// NopNotifier discards progress events.
type NopNotifier struct{}

// NotifyProgress implements Notifier by doing nothing.
func (NopNotifier) NotifyProgress(string, ProgressEvent) {}

// CreateParams are the inputs of CreateFile.
type CreateParams struct {
	// ProjectID is the owning project.
	ProjectID string
	// OwnerID is the requesting teacher.
	OwnerID string
	// Prompt is the generation request.
	Prompt string
	// DisplayName is the human-facing file name.
	DisplayName string
	// Type is the artifact kind.
	Type core.FileType
	// Format is the output format.
	Format core.FileFormat
}

// VersionParams are the inputs of NewVersion.
type VersionParams struct {
	// FileID is the file to version.
	FileID string
	// EditPrompt is the edit (or regeneration) request.
	EditPrompt string
	// BaseVersion selects the version an edit starts from; zero means the
	// current version.
	BaseVersion int
}

// Generator creates versioned artifacts through asynchronous jobs.
type Generator struct {
	// store is the relational store.
	store store.Store
	// objects persists artifacts and metadata.
	objects objstore.Storage
	// engine retrieves document context for generation.
	engine *rag.Engine
	// model generates the artifact content.
	model provider.ChatModel
	// notifier delivers progress events to owners.
	notifier Notifier
	// log is the structured logger for background jobs.
	log *slog.Logger

	// mu guards jobs.
	mu sync.Mutex
	// jobs maps "fileID:version" to the running job's cancel function.
	jobs map[string]context.CancelFunc
	// wg tracks running jobs for Wait.
	wg sync.WaitGroup
}

// NewGenerator constructs a Generator from its dependencies.
func NewGenerator(st store.Store, objects objstore.Storage, engine *rag.Engine, model provider.ChatModel, notifier Notifier, log *slog.Logger) (*Generator, error) {
	if st == nil || objects == nil || engine == nil || model == nil {
		return nil, fmt.Errorf("filegen: all dependencies must be non-nil")
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Generator{
		store:    st,
		objects:  objects,
		engine:   engine,
		model:    model,
		notifier: notifier,
		log:      log,
		jobs:     make(map[string]context.CancelFunc),
	}, nil
}

// SetNotifier replaces the progress notifier. Called once at startup,
// before any job is launched, to wire the server's websocket hub.
func (g *Generator) SetNotifier(n Notifier) {
	if n != nil {
		g.notifier = n
	}
}

// CreateFile creates a generated file and launches its first generation
// job, returning immediately. When a file with the same (project, slug)
// already exists, the call becomes a new version of that file with the
// prompt as the edit request.
func (g *Generator) CreateFile(ctx context.Context, params CreateParams) (*core.GeneratedFile, error) {
	fileName := Slug(params.DisplayName)
	if fileName == "" {
		return nil, fmt.Errorf("filegen: display name %q yields an empty file name", params.DisplayName)
	}

	existing, err := g.store.GetFileByName(ctx, params.ProjectID, fileName)
	if err == nil {
		return g.NewVersion(ctx, VersionParams{FileID: existing.ID, EditPrompt: params.Prompt})
	}
	if !core.IsCode(err, core.CodeNotFound) {
		return nil, err
	}

	file, err := g.store.CreateFile(ctx, &core.GeneratedFile{
		ProjectID:   params.ProjectID,
		OwnerID:     params.OwnerID,
		FileName:    fileName,
		DisplayName: params.DisplayName,
		Type:        params.Type,
		Format:      params.Format,
	})
	if err != nil {
		return nil, err
	}
	if _, err := g.store.CreateVersion(ctx, &core.GeneratedFileVersion{
		FileID:  file.ID,
		Version: 1,
		Prompt:  params.Prompt,
	}); err != nil {
		return nil, err
	}

	g.launch(file, 1, params.Prompt, "")
	return file, nil
}

// NewVersion creates the next version of an existing file and launches its
// generation job, returning immediately. When the base version's content
// is unavailable (never completed, or a PDF artifact), the new version is a
// fresh generation rather than an edit.
func (g *Generator) NewVersion(ctx context.Context, params VersionParams) (*core.GeneratedFile, error) {
	file, err := g.store.GetFile(ctx, params.FileID)
	if err != nil {
		return nil, err
	}

	newVersion := file.CurrentVersion + 1
	base := params.BaseVersion
	if base == 0 {
		base = file.CurrentVersion
	}
	baseContent := g.baseContent(ctx, file, base)

	if _, err := g.store.CreateVersion(ctx, &core.GeneratedFileVersion{
		FileID:      file.ID,
		Version:     newVersion,
		Prompt:      params.EditPrompt,
		BaseVersion: base,
	}); err != nil {
		return nil, err
	}
	if err := g.store.SetCurrentVersion(ctx, file.ID, newVersion); err != nil {
		return nil, err
	}
	file.CurrentVersion = newVersion

	g.launch(file, newVersion, params.EditPrompt, baseContent)
	return file, nil
}

// baseContent fetches the base version's artifact for a genuine edit.
// Markdown artifacts are reused with their front matter stripped; PDF
// artifacts cannot be reverse-parsed and yield a fresh generation.
func (g *Generator) baseContent(ctx context.Context, file *core.GeneratedFile, base int) string {
	if file.Format != core.FormatMarkdown {
		return ""
	}
	version, err := g.store.GetVersion(ctx, file.ID, base)
	if err != nil || version.StorageKey == "" || version.Status != core.StatusCompleted {
		return ""
	}
	data, err := g.objects.Get(ctx, version.StorageKey)
	if err != nil {
		return ""
	}
	return stripFrontMatter(string(data))
}

// stripFrontMatter removes the leading front-matter block of a rendered
// markdown artifact.
func stripFrontMatter(content string) string {
	if !strings.HasPrefix(content, "---\n") {
		return content
	}
	rest := content[4:]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return content
	}
	return strings.TrimLeft(rest[end+5:], "\n")
}

// jobKey identifies a running generation job.
func jobKey(fileID string, version int) string {
	return fmt.Sprintf("%s:%d", fileID, version)
}

// launch starts the asynchronous generation job for a version.
func (g *Generator) launch(file *core.GeneratedFile, version int, prompt, baseContent string) {
	ctx, cancel := context.WithCancel(context.Background())
	key := jobKey(file.ID, version)

	g.mu.Lock()
	g.jobs[key] = cancel
	g.mu.Unlock()

	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		defer func() {
			g.mu.Lock()
			delete(g.jobs, key)
			g.mu.Unlock()
			cancel()
		}()
		g.runJob(ctx, file, version, prompt, baseContent)
	}()
}

// Wait blocks until every running generation job has finished. Used at
// shutdown and by tests.
func (g *Generator) Wait() { g.wg.Wait() }

// CancelVersion cancels a running generation job (if any) and marks the
// version failed.
func (g *Generator) CancelVersion(ctx context.Context, fileID string, version int) error {
	g.mu.Lock()
	cancel, running := g.jobs[jobKey(fileID, version)]
	g.mu.Unlock()
	if running {
		cancel()
	}
	return g.store.FailVersion(ctx, fileID, version, "cancelled")
}

// DeleteFile cancels the file's running jobs and removes the file, its
// versions, and all stored artifacts.
func (g *Generator) DeleteFile(ctx context.Context, fileID string) error {
	g.mu.Lock()
	for key, cancel := range g.jobs {
		if strings.HasPrefix(key, fileID+":") {
			cancel()
		}
	}
	g.mu.Unlock()

	if err := g.store.DeleteFile(ctx, fileID); err != nil {
		return err
	}
	return g.objects.DeletePrefix(ctx, fileID+"/")
}

// Download returns the artifact bytes of a version (zero selects the
// current version) together with the download filename and content type.
func (g *Generator) Download(ctx context.Context, fileID string, version int) ([]byte, string, string, error) {
	file, err := g.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, "", "", err
	}
	if version == 0 {
		version = file.CurrentVersion
	}
	v, err := g.store.GetVersion(ctx, fileID, version)
	if err != nil {
		return nil, "", "", err
	}
	if v.StorageKey == "" || v.Status != core.StatusCompleted {
		return nil, "", "", core.E(core.CodeNotFound, "version %d of file %s has no artifact", version, fileID)
	}
	data, err := g.objects.Get(ctx, v.StorageKey)
	if err != nil {
		return nil, "", "", err
	}

	name := file.DisplayName
	if version != file.CurrentVersion {
		name = fmt.Sprintf("%s_v%d", name, version)
	}
	name = fmt.Sprintf("%s.%s", name, file.Format)

	contentType := "text/markdown; charset=utf-8"
	if file.Format == core.FormatPDF {
		contentType = "application/pdf"
	}
	return data, name, contentType, nil
}

// runJob executes one generation: gather context, prompt the model, render
// the artifact, persist it, and report progress.
func (g *Generator) runJob(ctx context.Context, file *core.GeneratedFile, version int, prompt, baseContent string) {
	start := time.Now()
	g.notify(file, ProgressEvent{FileID: file.ID, Version: version, Status: core.StatusGenerating, Progress: 0})

	fail := func(err error) {
		msg := err.Error()
		if ctx.Err() != nil {
			msg = "cancelled"
			g.log.Info("filegen: job cancelled",
				slog.String("file_id", file.ID), slog.Int("version", version))
		} else {
			g.log.Error("filegen: job failed",
				slog.String("file_id", file.ID), slog.Int("version", version),
				slog.String("error", msg))
		}
		// The row update uses a fresh context: the job context is already
		// dead when the failure is a cancellation.
		_ = g.store.FailVersion(context.Background(), file.ID, version, msg)
		g.notify(file, ProgressEvent{FileID: file.ID, Version: version, Status: core.StatusFailed, Message: msg})
	}

	project, err := g.store.GetProject(ctx, file.ProjectID)
	if err != nil {
		fail(err)
		return
	}

	contextBlock, sources := g.gatherContext(ctx, project, prompt)
	g.notify(file, ProgressEvent{FileID: file.ID, Version: version, Status: core.StatusGenerating, Progress: 25})

	fullPrompt := BuildPrompt(file.Type, templateData{
		Prompt:      prompt,
		Context:     contextBlock,
		ProjectName: project.Name,
		Subject:     project.Subject,
		BaseContent: baseContent,
	})

	completion, err := g.model.Complete(ctx, []core.ChatMessage{
		{Role: core.ChatRoleUser, Content: fullPrompt},
	})
	if err != nil {
		fail(err)
		return
	}
	if strings.TrimSpace(completion.Content) == "" {
		fail(core.E(core.CodeModelReturnedEmpty, "generation for %s v%d returned no content", file.ID, version))
		return
	}
	g.notify(file, ProgressEvent{FileID: file.ID, Version: version, Status: core.StatusGenerating, Progress: 70})

	var artifact []byte
	pageCount := 0
	if file.Format == core.FormatPDF {
		artifact, pageCount, err = RenderPDF(file, project.Name, completion.Content)
		if err != nil {
			fail(err)
			return
		}
	} else {
		artifact = RenderMarkdown(file, project.Name, version, completion.Content)
	}

	storageKey := fmt.Sprintf("%s/v%d/file.%s", file.ID, version, file.Format)
	contentType := "text/markdown; charset=utf-8"
	if file.Format == core.FormatPDF {
		contentType = "application/pdf"
	}
	if err := g.objects.Upload(ctx, storageKey, artifact, contentType); err != nil {
		fail(err)
		return
	}
	if err := g.uploadMetadata(ctx, file, version, prompt, sources, storageKey); err != nil {
		fail(err)
		return
	}

	if err := g.store.CompleteVersion(ctx, &core.GeneratedFileVersion{
		FileID:         file.ID,
		Version:        version,
		StorageKey:     storageKey,
		Size:           int64(len(artifact)),
		PageCount:      pageCount,
		GenerationTime: time.Since(start),
		Sources:        sources,
	}); err != nil {
		fail(err)
		return
	}

	g.notify(file, ProgressEvent{FileID: file.ID, Version: version, Status: core.StatusCompleted, Progress: 100})
	g.log.Info("filegen: job completed",
		slog.String("file_id", file.ID),
		slog.Int("version", version),
		slog.Int("bytes", len(artifact)),
		slog.Duration("elapsed", time.Since(start)),
	)
}

// gatherContext retrieves document context for the prompt. Missing
// collections, empty search terms, and retrieval failures all degrade to an
// empty context — generation proceeds from the prompt alone.
func (g *Generator) gatherContext(ctx context.Context, project *core.Project, prompt string) (string, []core.Source) {
	if project.CollectionHandle == "" {
		return "", nil
	}
	terms := SearchTerms(prompt)
	if terms == "" {
		return "", nil
	}

	matches, err := g.engine.Retrieve(ctx, project.ID, terms)
	if err != nil || len(matches) == 0 {
		if err != nil {
			g.log.Warn("filegen: context retrieval failed, generating without context",
				slog.String("project_id", project.ID), slog.String("error", err.Error()))
		}
		return "", nil
	}

	var sb strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&sb, "[%s]\n%s\n\n", m.Payload.Metadata.OriginalName, m.Payload.Content)
	}
	return strings.TrimSpace(sb.String()), rag.SourcesFromMatches(matches)
}

// versionMetadata is the sibling metadata JSON stored next to an artifact.
type versionMetadata struct {
	Prompt      string        `json:"prompt"`
	Sources     []core.Source `json:"sources"`
	FileID      string        `json:"fileId"`
	Version     int           `json:"version"`
	DisplayName string        `json:"displayName"`
	Type        core.FileType `json:"type"`
	GeneratedAt string        `json:"generatedAt"`
}

// uploadMetadata persists the metadata JSON next to the artifact.
func (g *Generator) uploadMetadata(ctx context.Context, file *core.GeneratedFile, version int, prompt string, sources []core.Source, artifactKey string) error {
	meta := versionMetadata{
		Prompt:      prompt,
		Sources:     sources,
		FileID:      file.ID,
		Version:     version,
		DisplayName: file.DisplayName,
		Type:        file.Type,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("filegen: marshal metadata: %w", err)
	}
	key := strings.TrimSuffix(artifactKey, "file."+string(file.Format)) + "metadata.json"
	return g.objects.Upload(ctx, key, data, "application/json")
}

// notify delivers a progress event to the file's owner.
func (g *Generator) notify(file *core.GeneratedFile, event ProgressEvent) {
	g.notifier.NotifyProgress(file.OwnerID, event)
}
