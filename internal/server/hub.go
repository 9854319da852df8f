package server

import (
	"sync"

	"github.com/Rafael-Dagostim/studyflow-go/internal/filegen"
)

// progressHub fans file generation progress events out to the owner's open
// websocket sessions. It implements filegen.Notifier.
type progressHub struct {
	// mu guards sessions.
	mu sync.RWMutex
	// sessions holds the open sessions per owner id.
	sessions map[string]map[*session]struct{}
}

// newProgressHub creates an empty hub.
func newProgressHub() *progressHub {
	return &progressHub{sessions: make(map[string]map[*session]struct{})}
}

// register adds a session to its owner's set.
func (h *progressHub) register(se *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.sessions[se.ownerID]
	if !ok {
		set = make(map[*session]struct{})
		h.sessions[se.ownerID] = set
	}
	set[se] = struct{}{}
}

// unregister removes a session from its owner's set.
func (h *progressHub) unregister(se *session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.sessions[se.ownerID]; ok {
		delete(set, se)
		if len(set) == 0 {
			delete(h.sessions, se.ownerID)
		}
	}
}

// NotifyProgress implements filegen.Notifier by forwarding the event to
// every open session of the owner. Events to owners with no open session
// are dropped.
func (h *progressHub) NotifyProgress(ownerID string, event filegen.ProgressEvent) {
	h.mu.RLock()
	targets := make([]*session, 0, len(h.sessions[ownerID]))
	for se := range h.sessions[ownerID] {
		targets = append(targets, se)
	}
	h.mu.RUnlock()

	for _, se := range targets {
		se.emit(fileProgressEvent{
			Type:     evFileProgress,
			FileID:   event.FileID,
			Version:  event.Version,
			Status:   string(event.Status),
			Progress: event.Progress,
			Message:  event.Message,
		})
	}
}
