package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/Rafael-Dagostim/studyflow-go/internal/config"
	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
	"github.com/Rafael-Dagostim/studyflow-go/internal/memory"
	"github.com/Rafael-Dagostim/studyflow-go/internal/provider"
	"github.com/Rafael-Dagostim/studyflow-go/internal/store"
	"github.com/Rafael-Dagostim/studyflow-go/internal/vectorstore"
)

// fakeEmbedder maps known texts to fixed vectors; unknown text gets the
// default vector.
type fakeEmbedder struct {
	known map[string][]float32
	def   []float32
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := f.known[t]; ok {
			out[i] = v
		} else {
			out[i] = f.def
		}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

// fakeModel records the last prompt and returns a canned answer.
type fakeModel struct {
	lastMessages []core.ChatMessage
	reply        string
	calls        int
}

func (f *fakeModel) Complete(_ context.Context, msgs []core.ChatMessage) (*provider.Completion, error) {
	f.calls++
	f.lastMessages = msgs
	return &provider.Completion{
		Content: f.reply,
		Usage:   core.TokenUsage{PromptTokens: 80, CompletionTokens: 20, TotalTokens: 100},
	}, nil
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

// ragEnv is the wired engine with its fakes.
type ragEnv struct {
	store   store.Store
	vectors vectorstore.Store
	emb     *fakeEmbedder
	model   *fakeModel
	engine  *Engine
	project *core.Project
}

// newRagEnv wires an engine over an in-memory store and embedded vector
// store. When indexed is true, the project gets a collection with one
// photosynthesis chunk near the vector (1,0,0).
func newRagEnv(t *testing.T, indexed bool) *ragEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	vectors := vectorstore.NewChromem()
	emb := &fakeEmbedder{
		known: map[string][]float32{
			"o que é fotossíntese?": {1, 0, 0},
		},
		def: []float32{0, 0, 1},
	}
	model := &fakeModel{reply: "A fotossíntese converte luz em energia química."}

	p, err := st.CreateProject(ctx, &core.Project{OwnerID: "t", Name: "Bio", Subject: "Biologia"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	if indexed {
		handle, err := vectors.CreateCollection(ctx, p.ID, 3)
		if err != nil {
			t.Fatalf("create collection: %v", err)
		}
		if err := st.SetCollectionHandle(ctx, p.ID, handle); err != nil {
			t.Fatalf("set handle: %v", err)
		}
		err = vectors.Upsert(ctx, handle, []vectorstore.Point{
			{ID: "00000000-0000-0000-0000-00000000000a", Vector: []float32{0.95, 0.05, 0}, Payload: vectorstore.Payload{
				DocumentID: "doc-1", ProjectID: p.ID, ChunkIndex: 0,
				Content:  "A fotossíntese é o processo pelo qual as plantas convertem luz solar em energia.",
				Metadata: vectorstore.ChunkMetadata{OriginalName: "bio.pdf", TotalChunks: 1},
			}},
		})
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
		p, _ = st.GetProject(ctx, p.ID)
	}

	mem := memory.NewManager(st, model, config.MemorySettings{})
	engine, err := NewEngine(st, vectors, emb, model, mem, config.RAGSettings{MaxChunks: 5, SimilarityThreshold: 0.4})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return &ragEnv{store: st, vectors: vectors, emb: emb, model: model, engine: engine, project: p}
}

func Test_Engine_QueryWithoutCollectionIsNotIndexed(t *testing.T) {
	t.Parallel()
	env := newRagEnv(t, false)

	_, err := env.engine.Query(context.Background(), env.project.ID, "x")
	if !core.IsCode(err, core.CodeNotIndexed) {
		t.Errorf("want NotIndexed, got %v", err)
	}
	if env.model.calls != 0 {
		t.Error("model must not be called when project is not indexed")
	}
}

func Test_Engine_QueryNoHitsReturnsFixedMessage(t *testing.T) {
	t.Parallel()
	env := newRagEnv(t, true)

	res, err := env.engine.Query(context.Background(), env.project.ID, "criptografia quântica")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Answer != NoResultsMessage {
		t.Errorf("want fixed message, got %q", res.Answer)
	}
	if len(res.Sources) != 0 {
		t.Errorf("want empty sources, got %d", len(res.Sources))
	}
	if res.TokensUsed != 0 {
		t.Errorf("want zero tokens, got %d", res.TokensUsed)
	}
	if env.model.calls != 0 {
		t.Error("model must not be called for empty retrieval")
	}
}

func Test_Engine_QueryWithHits(t *testing.T) {
	t.Parallel()
	env := newRagEnv(t, true)

	res, err := env.engine.Query(context.Background(), env.project.ID, "o que é fotossíntese?")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if res.Answer != env.model.reply {
		t.Errorf("answer: %q", res.Answer)
	}
	if res.TokensUsed != 100 {
		t.Errorf("tokens: want 100, got %d", res.TokensUsed)
	}
	if len(res.Sources) != 1 {
		t.Fatalf("sources: want 1, got %d", len(res.Sources))
	}
	src := res.Sources[0]
	if src.DocumentID != "doc-1" || src.Filename != "bio.pdf" || src.ChunkIndex != 0 {
		t.Errorf("source: %+v", src)
	}

	// Prompt shape: system preamble with context first, user question last.
	msgs := env.model.lastMessages
	if msgs[0].Role != core.ChatRoleSystem || !strings.Contains(msgs[0].Content, "--- Document 1 ---") {
		t.Errorf("first message must carry context preamble: %+v", msgs[0])
	}
	if last := msgs[len(msgs)-1]; last.Role != core.ChatRoleUser || last.Content != "o que é fotossíntese?" {
		t.Errorf("last message must be the question: %+v", last)
	}
}

func Test_Engine_QueryWithMemoryNoHitsStillAnswers(t *testing.T) {
	t.Parallel()
	env := newRagEnv(t, true)
	ctx := context.Background()

	conv, err := env.store.CreateConversation(ctx, &core.Conversation{ProjectID: env.project.ID})
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	env.store.AppendMessage(ctx, &core.Message{ConversationID: conv.ID, Role: core.RoleUser, Content: "oi"})
	env.store.AppendMessage(ctx, &core.Message{ConversationID: conv.ID, Role: core.RoleAssistant, Content: "olá!"})

	res, err := env.engine.QueryWithMemory(ctx, env.project.ID, "tema sem resultados", conv.ID)
	if err != nil {
		t.Fatalf("query with memory: %v", err)
	}
	if env.model.calls != 1 {
		t.Fatalf("model calls: want 1, got %d", env.model.calls)
	}
	if res.Answer != env.model.reply {
		t.Errorf("answer: %q", res.Answer)
	}
	if len(res.Sources) != 0 {
		t.Errorf("sources: want none, got %d", len(res.Sources))
	}

	// No context preamble; memory precedes the user question.
	msgs := env.model.lastMessages
	for _, m := range msgs {
		if strings.Contains(m.Content, "Context Documents:") {
			t.Error("context preamble present despite empty retrieval")
		}
	}
	if msgs[0].Content != "oi" {
		t.Errorf("memory not prepended: %+v", msgs[0])
	}
	if last := msgs[len(msgs)-1]; last.Content != "tema sem resultados" {
		t.Errorf("question not appended: %+v", last)
	}
}

func Test_Engine_EducationalQueryPrefixes(t *testing.T) {
	t.Parallel()
	env := newRagEnv(t, true)
	ctx := context.Background()

	_, err := env.engine.EducationalQuery(ctx, env.project.ID, "fotossíntese", EducationalSummary, "")
	if err != nil {
		t.Fatalf("educational query: %v", err)
	}
	// Retrieval missed (prefixed text gets the default vector) so the model
	// was not called; that is the fixed-message path. Run the quiz variant
	// through the prompt check instead by mapping its rewritten text.
	rewritten := "Crie questões de múltipla escolha com 4 alternativas sobre: fotossíntese"
	env.emb.known[rewritten] = []float32{1, 0, 0}

	_, err = env.engine.EducationalQuery(ctx, env.project.ID, "fotossíntese", EducationalQuiz, "")
	if err != nil {
		t.Fatalf("educational quiz: %v", err)
	}
	last := env.model.lastMessages[len(env.model.lastMessages)-1]
	if last.Content != rewritten {
		t.Errorf("quiz prefix not applied: %q", last.Content)
	}
}

func Test_Preview_Truncation(t *testing.T) {
	t.Parallel()

	short := "curto"
	if got := Preview(short); got != short {
		t.Errorf("short preview altered: %q", got)
	}
	long := strings.Repeat("ab", 200)
	got := Preview(long)
	if len([]rune(got)) != 201 {
		t.Errorf("want 200 runes + ellipsis, got %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("missing ellipsis")
	}
}

func Test_BuildPrompt_OrderingWithMemory(t *testing.T) {
	t.Parallel()

	memoryMsgs := []core.ChatMessage{
		{Role: core.ChatRoleSystem, Content: "Previous conversation summary: falamos de células"},
		{Role: core.ChatRoleUser, Content: "e as mitocôndrias?"},
	}
	matches := []vectorstore.Match{
		{Score: 0.9, Payload: vectorstore.Payload{Content: "As mitocôndrias produzem ATP.", ChunkIndex: 3}},
	}
	msgs := BuildPrompt(memoryMsgs, matches, "explique de novo")

	if len(msgs) != 4 {
		t.Fatalf("want 4 messages, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].Content, "Context Documents:") {
		t.Error("context preamble must come first")
	}
	if msgs[1].Content != memoryMsgs[0].Content || msgs[2].Content != memoryMsgs[1].Content {
		t.Error("memory must follow the preamble in order")
	}
	if msgs[3].Content != "explique de novo" {
		t.Error("question must come last")
	}
}
