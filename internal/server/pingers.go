package server

import (
	"context"
	"time"

	"github.com/Rafael-Dagostim/studyflow-go/internal/objstore"
	"github.com/Rafael-Dagostim/studyflow-go/internal/store"
	"github.com/Rafael-Dagostim/studyflow-go/internal/vectorstore"
)

// Pinger is one dependency probe run by GET /api/ready. Probes must be
// cheap and respect the context deadline.
type Pinger interface {
	// Name identifies the dependency in the readiness payload.
	Name() string
	// Ping verifies the dependency is reachable.
	Ping(ctx context.Context) error
}

// pingTimeout bounds each individual readiness probe.
const pingTimeout = 3 * time.Second

// StorePinger probes the relational store.
type StorePinger struct {
	// Store is the store to probe.
	Store store.Store
}

// Name identifies the probe.
func (StorePinger) Name() string { return "store" }

// Ping verifies the relational store is reachable.
func (p StorePinger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return p.Store.Ping(ctx)
}

// VectorPinger probes the vector store by idempotently creating the probe
// project's collection; an unreachable backend errors.
type VectorPinger struct {
	// Vectors is the vector store to probe.
	Vectors vectorstore.Store
	// ProbeProject is any project id; the probe creates its collection
	// when it does not exist yet.
	ProbeProject string
}

// Name identifies the probe.
func (VectorPinger) Name() string { return "vectorstore" }

// Ping verifies the vector store backend responds.
func (p VectorPinger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	// CreateCollection is idempotent and cheap; it doubles as a
	// connectivity check without requiring data.
	_, err := p.Vectors.CreateCollection(ctx, p.ProbeProject, 4)
	return err
}

// ObjectsPinger probes object storage with an existence check.
type ObjectsPinger struct {
	// Objects is the object storage to probe.
	Objects objstore.Storage
}

// Name identifies the probe.
func (ObjectsPinger) Name() string { return "objstore" }

// Ping verifies object storage responds to a metadata request.
func (p ObjectsPinger) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	_, err := p.Objects.Exists(ctx, ".readiness-probe")
	return err
}
