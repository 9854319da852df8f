package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Rafael-Dagostim/studyflow-go/internal/config"
	"github.com/Rafael-Dagostim/studyflow-go/internal/embedder"
	"github.com/Rafael-Dagostim/studyflow-go/internal/filegen"
	"github.com/Rafael-Dagostim/studyflow-go/internal/ingest"
	"github.com/Rafael-Dagostim/studyflow-go/internal/memory"
	"github.com/Rafael-Dagostim/studyflow-go/internal/objstore"
	"github.com/Rafael-Dagostim/studyflow-go/internal/provider"
	"github.com/Rafael-Dagostim/studyflow-go/internal/rag"
	"github.com/Rafael-Dagostim/studyflow-go/internal/splitter"
	"github.com/Rafael-Dagostim/studyflow-go/internal/store"
	"github.com/Rafael-Dagostim/studyflow-go/internal/vectorstore"
)

// coreStack bundles the wired subsystems shared by the CLI commands.
type coreStack struct {
	// Store is the relational store.
	Store store.Store
	// Objects is the object storage.
	Objects objstore.Storage
	// Vectors is the vector store gateway.
	Vectors vectorstore.Store
	// Embedder embeds text.
	Embedder embedder.Embedder
	// Model is the chat completion provider.
	Model provider.ChatModel
	// Memory builds conversation context.
	Memory *memory.Manager
	// Engine answers RAG queries.
	Engine *rag.Engine
	// Coordinator drives ingestion.
	Coordinator *ingest.Coordinator
	// Generator produces versioned artifacts.
	Generator *filegen.Generator
}

// buildCore wires the full subsystem stack from the environment.
// notifier may be nil; the serve command passes nil and installs the
// server's websocket hub afterwards with Generator.SetNotifier, so owners
// receive generation progress.
func buildCore(ctx context.Context, log *slog.Logger, notifier filegen.Notifier) (*coreStack, func(), error) {
	dbPath := config.EnvStr("STUDYFLOW_DB", "")
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, nil, err
		}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, err
	}

	objects, err := objstore.NewFromEnv(ctx)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	vectors, err := vectorstore.NewFromEnv()
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	emb, err := embedder.NewOpenAIFromEnv()
	if err != nil {
		st.Close()
		vectors.Close()
		return nil, nil, err
	}
	model, err := provider.NewOpenAIFromEnv()
	if err != nil {
		st.Close()
		vectors.Close()
		return nil, nil, err
	}

	ragSettings := config.RAGFromEnv()
	split := splitter.New(splitter.Config{
		ChunkSize:    ragSettings.ChunkSize,
		ChunkOverlap: ragSettings.ChunkOverlap,
	})

	mem := memory.NewManager(st, model, config.MemoryFromEnv())

	engine, err := rag.NewEngine(st, vectors, emb, model, mem, ragSettings)
	if err != nil {
		st.Close()
		vectors.Close()
		return nil, nil, err
	}

	coordinator, err := ingest.NewCoordinator(st, objects, emb, vectors, split)
	if err != nil {
		st.Close()
		vectors.Close()
		return nil, nil, err
	}

	generator, err := filegen.NewGenerator(st, objects, engine, model, notifier, log)
	if err != nil {
		st.Close()
		vectors.Close()
		return nil, nil, err
	}

	stack := &coreStack{
		Store:       st,
		Objects:     objects,
		Vectors:     vectors,
		Embedder:    emb,
		Model:       model,
		Memory:      mem,
		Engine:      engine,
		Coordinator: coordinator,
		Generator:   generator,
	}
	cleanup := func() {
		generator.Wait()
		if err := vectors.Close(); err != nil {
			log.Warn("close vector store", slog.String("error", err.Error()))
		}
		if err := st.Close(); err != nil {
			log.Warn("close store", slog.String("error", err.Error()))
		}
	}
	return stack, cleanup, nil
}

// printResult writes one ingest result line for CLI output.
func printResult(r ingest.ProjectResult) {
	if r.Error != "" {
		fmt.Printf("  ✗ %s (%s): %s\n", r.Filename, r.DocumentID, r.Error)
		return
	}
	if r.Result.AlreadyProcessed {
		fmt.Printf("  - %s (%s): already processed\n", r.Filename, r.DocumentID)
		return
	}
	fmt.Printf("  ✓ %s (%s): %d chunks in %s\n",
		r.Filename, r.DocumentID, r.Result.ChunksProcessed, r.Result.ProcessingTime)
}
