package store

import (
	"context"
	"testing"
	"time"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

// openTestStore opens an in-memory SQLite store for use in tests.
func openTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// seedProject creates a project for tests that need one.
func seedProject(t *testing.T, s *SQLite) *core.Project {
	t.Helper()
	p, err := s.CreateProject(context.Background(), &core.Project{
		OwnerID: "teacher-1",
		Name:    "Biology 101",
		Subject: "Biology",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

func Test_Store_ProjectRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	p := seedProject(t, s)
	got, err := s.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if got.Name != "Biology 101" || got.OwnerID != "teacher-1" {
		t.Errorf("unexpected project: %+v", got)
	}
	if got.CollectionHandle != "" {
		t.Errorf("new project must have no collection handle, got %q", got.CollectionHandle)
	}
}

func Test_Store_CollectionHandleWriteOnce(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s)

	if err := s.SetCollectionHandle(ctx, p.ID, "project_"+p.ID); err != nil {
		t.Fatalf("set handle: %v", err)
	}
	// Same handle again is a no-op.
	if err := s.SetCollectionHandle(ctx, p.ID, "project_"+p.ID); err != nil {
		t.Errorf("idempotent set: %v", err)
	}
	// A different handle must be rejected.
	if err := s.SetCollectionHandle(ctx, p.ID, "project_other"); err == nil {
		t.Error("want error reassigning collection handle")
	}
}

func Test_Store_DocumentProcessedLifecycle(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s)

	d, err := s.CreateDocument(ctx, &core.Document{
		ProjectID:   p.ID,
		Filename:    "hist.txt",
		ContentType: "text/plain",
		Size:        1234,
		StorageKey:  "docs/hist.txt",
	})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}

	unprocessed, err := s.ListUnprocessedDocuments(ctx, p.ID)
	if err != nil {
		t.Fatalf("list unprocessed: %v", err)
	}
	if len(unprocessed) != 1 {
		t.Fatalf("want 1 unprocessed doc, got %d", len(unprocessed))
	}

	if err := s.SetExtractedText(ctx, d.ID, "extracted body"); err != nil {
		t.Fatalf("set extracted text: %v", err)
	}
	if err := s.MarkProcessed(ctx, d.ID, time.Now()); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	got, _ := s.GetDocument(ctx, d.ID)
	if !got.Processed() || got.ExtractedText != "extracted body" {
		t.Errorf("unexpected document state: %+v", got)
	}

	if err := s.ClearProcessed(ctx, d.ID); err != nil {
		t.Fatalf("clear processed: %v", err)
	}
	got, _ = s.GetDocument(ctx, d.ID)
	if got.Processed() || got.ExtractedText != "" {
		t.Errorf("clear processed left state behind: %+v", got)
	}
}

func Test_Store_ReplaceRawBytesClearsProcessed(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s)

	d, _ := s.CreateDocument(ctx, &core.Document{
		ProjectID: p.ID, Filename: "a.txt", ContentType: "text/plain",
		Size: 10, StorageKey: "docs/a-v1",
	})
	s.SetExtractedText(ctx, d.ID, "old text")
	s.MarkProcessed(ctx, d.ID, time.Now())

	if err := s.ReplaceRawBytes(ctx, d.ID, "docs/a-v2", 20); err != nil {
		t.Fatalf("replace raw bytes: %v", err)
	}
	got, _ := s.GetDocument(ctx, d.ID)
	if got.Processed() || got.ExtractedText != "" || got.StorageKey != "docs/a-v2" || got.Size != 20 {
		t.Errorf("unexpected state after replace: %+v", got)
	}
}

func Test_Store_MessagesInsertionOrder(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s)

	c, err := s.CreateConversation(ctx, &core.Conversation{ProjectID: p.ID, Title: "Chat: cells"})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}

	for i, turn := range []struct {
		role    core.Role
		content string
	}{
		{core.RoleUser, "what is a cell?"},
		{core.RoleAssistant, "the basic unit of life"},
		{core.RoleUser, "and a nucleus?"},
	} {
		if _, err := s.AppendMessage(ctx, &core.Message{
			ConversationID: c.ID, Role: turn.role, Content: turn.content,
		}); err != nil {
			t.Fatalf("append message %d: %v", i, err)
		}
	}

	msgs, err := s.Messages(ctx, c.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("want 3 messages, got %d", len(msgs))
	}
	if msgs[0].Content != "what is a cell?" || msgs[2].Content != "and a nucleus?" {
		t.Errorf("order broken: %q ... %q", msgs[0].Content, msgs[2].Content)
	}
}

func Test_Store_MessageMetadataRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s)
	c, _ := s.CreateConversation(ctx, &core.Conversation{ProjectID: p.ID})

	_, err := s.AppendMessage(ctx, &core.Message{
		ConversationID: c.ID,
		Role:           core.RoleAssistant,
		Content:        "answer",
		Metadata: &core.MessageMetadata{
			TokensUsed: 321,
			Sources: []core.Source{
				{DocumentID: "d1", Filename: "a.pdf", ContentPreview: "…", Score: 0.8, ChunkIndex: 2},
			},
		},
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	msgs, _ := s.Messages(ctx, c.ID)
	md := msgs[0].Metadata
	if md == nil || md.TokensUsed != 321 || len(md.Sources) != 1 || md.Sources[0].ChunkIndex != 2 {
		t.Errorf("metadata round trip failed: %+v", md)
	}
}

func Test_Store_FileVersionsDense(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s)

	f, err := s.CreateFile(ctx, &core.GeneratedFile{
		ProjectID: p.ID, OwnerID: "teacher-1",
		FileName: "quiz-fotossintese", DisplayName: "Quiz Fotossintese",
		Type: core.FileTypeQuiz, Format: core.FormatPDF,
	})
	if err != nil {
		t.Fatalf("create file: %v", err)
	}

	for v := 1; v <= 3; v++ {
		if _, err := s.CreateVersion(ctx, &core.GeneratedFileVersion{
			FileID: f.ID, Version: v, Prompt: "crie um quiz",
		}); err != nil {
			t.Fatalf("create version %d: %v", v, err)
		}
		if err := s.SetCurrentVersion(ctx, f.ID, v); err != nil {
			t.Fatalf("set current version %d: %v", v, err)
		}
	}

	versions, err := s.ListVersions(ctx, f.ID)
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("want 3 versions, got %d", len(versions))
	}
	for i, v := range versions {
		if v.Version != i+1 {
			t.Errorf("versions not dense: position %d holds version %d", i, v.Version)
		}
	}
	got, _ := s.GetFile(ctx, f.ID)
	if got.CurrentVersion != 3 {
		t.Errorf("current version: want 3, got %d", got.CurrentVersion)
	}
}

func Test_Store_FileUniquePerProjectName(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s)

	base := &core.GeneratedFile{
		ProjectID: p.ID, OwnerID: "o", FileName: "resumo",
		DisplayName: "Resumo", Type: core.FileTypeSummary, Format: core.FormatMarkdown,
	}
	if _, err := s.CreateFile(ctx, base); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &core.GeneratedFile{
		ProjectID: p.ID, OwnerID: "o", FileName: "resumo",
		DisplayName: "Resumo 2", Type: core.FileTypeSummary, Format: core.FormatMarkdown,
	}
	if _, err := s.CreateFile(ctx, dup); err == nil {
		t.Error("want unique constraint violation for duplicate (project, file_name)")
	}
}

func Test_Store_VersionCompleteAndFail(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s)
	f, _ := s.CreateFile(ctx, &core.GeneratedFile{
		ProjectID: p.ID, OwnerID: "o", FileName: "guia",
		DisplayName: "Guia", Type: core.FileTypeStudyGuide, Format: core.FormatMarkdown,
	})
	v, _ := s.CreateVersion(ctx, &core.GeneratedFileVersion{FileID: f.ID, Version: 1, Prompt: "p"})

	v.StorageKey = f.ID + "/v1/file.markdown"
	v.Size = 512
	v.GenerationTime = 1500 * time.Millisecond
	v.Sources = []core.Source{{DocumentID: "d1", Filename: "x.pdf", Score: 0.7}}
	if err := s.CompleteVersion(ctx, v); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ := s.GetVersion(ctx, f.ID, 1)
	if got.Status != core.StatusCompleted || got.Size != 512 || len(got.Sources) != 1 {
		t.Errorf("unexpected completed version: %+v", got)
	}

	v2, _ := s.CreateVersion(ctx, &core.GeneratedFileVersion{FileID: f.ID, Version: 2, Prompt: "p2"})
	if err := s.FailVersion(ctx, f.ID, v2.Version, "model returned empty"); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ = s.GetVersion(ctx, f.ID, 2)
	if got.Status != core.StatusFailed || got.ErrorMessage != "model returned empty" {
		t.Errorf("unexpected failed version: %+v", got)
	}
}

func Test_Store_ProjectDeleteCascades(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	p := seedProject(t, s)

	d, _ := s.CreateDocument(ctx, &core.Document{ProjectID: p.ID, Filename: "a", ContentType: "text/plain", StorageKey: "k"})
	c, _ := s.CreateConversation(ctx, &core.Conversation{ProjectID: p.ID})
	s.AppendMessage(ctx, &core.Message{ConversationID: c.ID, Role: core.RoleUser, Content: "hi"})
	f, _ := s.CreateFile(ctx, &core.GeneratedFile{ProjectID: p.ID, OwnerID: "o", FileName: "n", DisplayName: "N", Type: core.FileTypeCustom, Format: core.FormatMarkdown})
	s.CreateVersion(ctx, &core.GeneratedFileVersion{FileID: f.ID, Version: 1, Prompt: "p"})

	if err := s.DeleteProject(ctx, p.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}

	if _, err := s.GetDocument(ctx, d.ID); !core.IsCode(err, core.CodeNotFound) {
		t.Errorf("document survived cascade: %v", err)
	}
	if _, err := s.GetConversation(ctx, c.ID); !core.IsCode(err, core.CodeNotFound) {
		t.Errorf("conversation survived cascade: %v", err)
	}
	if _, err := s.GetFile(ctx, f.ID); !core.IsCode(err, core.CodeNotFound) {
		t.Errorf("file survived cascade: %v", err)
	}
	msgs, _ := s.Messages(ctx, c.ID)
	if len(msgs) != 0 {
		t.Errorf("messages survived cascade: %d", len(msgs))
	}
}
