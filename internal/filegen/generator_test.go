package filegen

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/Rafael-Dagostim/studyflow-go/internal/config"
	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
	"github.com/Rafael-Dagostim/studyflow-go/internal/objstore"
	"github.com/Rafael-Dagostim/studyflow-go/internal/provider"
	"github.com/Rafael-Dagostim/studyflow-go/internal/rag"
	"github.com/Rafael-Dagostim/studyflow-go/internal/store"
	"github.com/Rafael-Dagostim/studyflow-go/internal/vectorstore"
)

// fakeEmbedder returns a constant vector for any input.
type fakeEmbedder struct{}

func (fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

func (f fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	v, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (fakeEmbedder) Dimensions() int { return 3 }

// fakeModel returns a canned reply, optionally blocking until cancelled.
type fakeModel struct {
	reply string
	block bool
}

func (f *fakeModel) Complete(ctx context.Context, _ []core.ChatMessage) (*provider.Completion, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &provider.Completion{Content: f.reply}, nil
}

func (f *fakeModel) Stream(ctx context.Context, msgs []core.ChatMessage, onDelta provider.StreamFunc) (*provider.Completion, error) {
	c, err := f.Complete(ctx, msgs)
	if err != nil {
		return nil, err
	}
	if err := onDelta(c.Content); err != nil {
		return nil, err
	}
	return c, nil
}

// recordingNotifier captures progress events per owner.
type recordingNotifier struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (r *recordingNotifier) NotifyProgress(_ string, event ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingNotifier) snapshot() []ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ProgressEvent(nil), r.events...)
}

// genEnv wires a Generator over in-memory fakes.
type genEnv struct {
	store     store.Store
	objects   *objstore.Memory
	model     *fakeModel
	notifier  *recordingNotifier
	generator *Generator
	project   *core.Project
}

func newGenEnv(t *testing.T, model *fakeModel) *genEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	objects := objstore.NewMemory()
	vectors := vectorstore.NewChromem()
	engine, err := rag.NewEngine(st, vectors, fakeEmbedder{}, model, nil, config.RAGSettings{})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	notifier := &recordingNotifier{}
	gen, err := NewGenerator(st, objects, engine, model, notifier, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	p, err := st.CreateProject(ctx, &core.Project{OwnerID: "t", Name: "Bio", Subject: "Biologia"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return &genEnv{store: st, objects: objects, model: model, notifier: notifier, generator: gen, project: p}
}

func Test_Generator_QuizWithoutContext(t *testing.T) {
	t.Parallel()
	env := newGenEnv(t, &fakeModel{reply: quizMarkdown})
	ctx := context.Background()

	file, err := env.generator.CreateFile(ctx, CreateParams{
		ProjectID:   env.project.ID,
		OwnerID:     "t",
		Prompt:      "Crie um quiz de 10 perguntas sobre fotossíntese",
		DisplayName: "Quiz Fotossintese",
		Type:        core.FileTypeQuiz,
		Format:      core.FormatPDF,
	})
	if err != nil {
		t.Fatalf("create file: %v", err)
	}
	if file.FileName != "quiz-fotossintese" || file.CurrentVersion != 1 {
		t.Errorf("unexpected file: %+v", file)
	}

	env.generator.Wait()

	version, err := env.store.GetVersion(ctx, file.ID, 1)
	if err != nil {
		t.Fatalf("get version: %v", err)
	}
	if version.Status != core.StatusCompleted {
		t.Fatalf("status: want completed, got %s (%s)", version.Status, version.ErrorMessage)
	}
	if len(version.Sources) != 0 {
		t.Errorf("sources must be empty without documents, got %d", len(version.Sources))
	}
	if version.PageCount < 2 {
		t.Errorf("quiz PDF page count: %d", version.PageCount)
	}

	artifact, err := env.objects.Get(ctx, version.StorageKey)
	if err != nil {
		t.Fatalf("artifact: %v", err)
	}
	if !bytes.HasPrefix(artifact, []byte("%PDF")) {
		t.Error("stored artifact is not a PDF")
	}
	if ok, _ := env.objects.Exists(ctx, file.ID+"/v1/metadata.json"); !ok {
		t.Error("metadata.json missing")
	}

	events := env.notifier.snapshot()
	if len(events) < 2 {
		t.Fatalf("want progress events, got %d", len(events))
	}
	if events[0].Status != core.StatusGenerating || events[0].Progress != 0 {
		t.Errorf("first event: %+v", events[0])
	}
	last := events[len(events)-1]
	if last.Status != core.StatusCompleted || last.Progress != 100 {
		t.Errorf("last event: %+v", last)
	}
}

func Test_Generator_DuplicateNameBecomesNewVersion(t *testing.T) {
	t.Parallel()
	env := newGenEnv(t, &fakeModel{reply: "# Resumo\n\ncorpo"})
	ctx := context.Background()

	params := CreateParams{
		ProjectID: env.project.ID, OwnerID: "t", Prompt: "resumo de células",
		DisplayName: "Resumo Células", Type: core.FileTypeSummary, Format: core.FormatMarkdown,
	}
	first, err := env.generator.CreateFile(ctx, params)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	env.generator.Wait()

	second, err := env.generator.CreateFile(ctx, params)
	if err != nil {
		t.Fatalf("create again: %v", err)
	}
	env.generator.Wait()

	if second.ID != first.ID {
		t.Errorf("duplicate create must return the existing file")
	}
	if second.CurrentVersion != 2 {
		t.Errorf("current version: want 2, got %d", second.CurrentVersion)
	}
	versions, _ := env.store.ListVersions(ctx, first.ID)
	for i, v := range versions {
		if v.Version != i+1 {
			t.Errorf("versions not dense: %d at %d", v.Version, i)
		}
	}
	// v2 is a genuine edit: its base content came from v1.
	v2, _ := env.store.GetVersion(ctx, first.ID, 2)
	if v2.BaseVersion != 1 {
		t.Errorf("base version: want 1, got %d", v2.BaseVersion)
	}
}

func Test_Generator_EmptyModelOutputFails(t *testing.T) {
	t.Parallel()
	env := newGenEnv(t, &fakeModel{reply: "   "})
	ctx := context.Background()

	file, err := env.generator.CreateFile(ctx, CreateParams{
		ProjectID: env.project.ID, OwnerID: "t", Prompt: "qualquer coisa",
		DisplayName: "Vazio", Type: core.FileTypeCustom, Format: core.FormatMarkdown,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	env.generator.Wait()

	version, _ := env.store.GetVersion(ctx, file.ID, 1)
	if version.Status != core.StatusFailed {
		t.Fatalf("status: want failed, got %s", version.Status)
	}
	if !strings.Contains(version.ErrorMessage, string(core.CodeModelReturnedEmpty)) {
		t.Errorf("error message: %q", version.ErrorMessage)
	}

	events := env.notifier.snapshot()
	last := events[len(events)-1]
	if last.Status != core.StatusFailed || last.Message == "" {
		t.Errorf("last event: %+v", last)
	}
}

func Test_Generator_CancelVersion(t *testing.T) {
	t.Parallel()
	env := newGenEnv(t, &fakeModel{block: true})
	ctx := context.Background()

	file, err := env.generator.CreateFile(ctx, CreateParams{
		ProjectID: env.project.ID, OwnerID: "t", Prompt: "demorado",
		DisplayName: "Lento", Type: core.FileTypeCustom, Format: core.FormatMarkdown,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := env.generator.CancelVersion(ctx, file.ID, 1); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	env.generator.Wait()

	version, _ := env.store.GetVersion(ctx, file.ID, 1)
	if version.Status != core.StatusFailed {
		t.Errorf("status: want failed after cancel, got %s", version.Status)
	}
}

func Test_Generator_DownloadNamesAndTypes(t *testing.T) {
	t.Parallel()
	env := newGenEnv(t, &fakeModel{reply: "# Doc\n\ntexto"})
	ctx := context.Background()

	file, _ := env.generator.CreateFile(ctx, CreateParams{
		ProjectID: env.project.ID, OwnerID: "t", Prompt: "doc",
		DisplayName: "Apostila", Type: core.FileTypeStudyGuide, Format: core.FormatMarkdown,
	})
	env.generator.Wait()

	data, name, contentType, err := env.generator.Download(ctx, file.ID, 0)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(data) == 0 || name != "Apostila.markdown" {
		t.Errorf("download: %d bytes, name %q", len(data), name)
	}
	if !strings.HasPrefix(contentType, "text/markdown") {
		t.Errorf("content type: %q", contentType)
	}

	// Older version downloads carry the version suffix.
	if _, err := env.generator.NewVersion(ctx, VersionParams{FileID: file.ID, EditPrompt: "melhore"}); err != nil {
		t.Fatalf("new version: %v", err)
	}
	env.generator.Wait()
	_, name, _, err = env.generator.Download(ctx, file.ID, 1)
	if err != nil {
		t.Fatalf("download v1: %v", err)
	}
	if name != "Apostila_v1.markdown" {
		t.Errorf("versioned name: %q", name)
	}
}

func Test_Generator_DeleteFileRemovesArtifacts(t *testing.T) {
	t.Parallel()
	env := newGenEnv(t, &fakeModel{reply: "# X"})
	ctx := context.Background()

	file, _ := env.generator.CreateFile(ctx, CreateParams{
		ProjectID: env.project.ID, OwnerID: "t", Prompt: "x",
		DisplayName: "Descartável", Type: core.FileTypeCustom, Format: core.FormatMarkdown,
	})
	env.generator.Wait()

	version, _ := env.store.GetVersion(ctx, file.ID, 1)
	if err := env.generator.DeleteFile(ctx, file.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := env.store.GetFile(ctx, file.ID); !core.IsCode(err, core.CodeNotFound) {
		t.Errorf("file survived: %v", err)
	}
	if ok, _ := env.objects.Exists(ctx, version.StorageKey); ok {
		t.Error("artifact survived delete")
	}
}
