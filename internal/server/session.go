package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
	"github.com/Rafael-Dagostim/studyflow-go/internal/rag"
)

// sendBuffer is the outbound event queue depth — roughly one model chunk
// worth of tokens. A client that cannot drain it stalls the stream.
const sendBuffer = 32

// sendTimeout is how long an emit may wait on a stalled client before the
// stream aborts with a slow_consumer error.
const sendTimeout = 10 * time.Second

// writeTimeout bounds a single websocket write.
const writeTimeout = 15 * time.Second

// titleLen is the number of message characters used for auto-generated
// conversation titles.
const titleLen = 50

// upgrader performs the websocket handshake. Origin enforcement happens
// upstream (the API gateway terminates auth and CORS).
var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// session drives one websocket chat connection: it reads client events,
// runs the query pipeline with progress events, and streams model output.
type session struct {
	// srv is the owning server.
	srv *Server
	// conn is the websocket connection.
	conn *websocket.Conn
	// ownerID is the authenticated user this session belongs to.
	ownerID string
	// send is the buffered outbound event queue drained by writeLoop.
	send chan any
	// ctx is cancelled when the client disconnects.
	ctx context.Context
	// cancel aborts all in-flight downstream work.
	cancel context.CancelFunc
	// log is the session logger.
	log *slog.Logger
	// acc accumulates the streamed answer for stream_chunk events.
	acc accumulated
}

// accumulated tracks the running answer of the in-flight stream.
type accumulated struct{ full string }

// handleChatSocket upgrades GET /ws/chat and runs the session until the
// client disconnects.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("server: websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	sess := &session{
		srv:     s,
		conn:    conn,
		ownerID: r.URL.Query().Get("owner"),
		send:    make(chan any, sendBuffer),
		ctx:     ctx,
		cancel:  cancel,
		log:     s.log.With(slog.String("component", "session")),
	}

	s.metrics.sessionsActive.Inc()
	defer s.metrics.sessionsActive.Dec()

	s.hub.register(sess)
	defer s.hub.unregister(sess)

	go sess.writeLoop()
	sess.readLoop()
}

// readLoop consumes client events until the connection drops. A read error
// cancels the session context, aborting any in-flight pipeline work.
func (se *session) readLoop() {
	defer se.cancel()
	defer se.conn.Close()

	for {
		var ev clientEvent
		if err := se.conn.ReadJSON(&ev); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				se.log.Debug("session: read ended", slog.String("error", err.Error()))
			}
			return
		}

		switch ev.Type {
		case evStart:
			se.handleStart(ev)
		case evListConversations:
			se.handleListConversations(ev)
		case evLoadConversation:
			se.handleLoadConversation(ev)
		default:
			se.emit(errorEvent{Type: evError, Message: fmt.Sprintf("unknown event type %q", ev.Type)})
		}
	}
}

// writeLoop serializes all outbound writes on a single goroutine. It exits
// when the session context is cancelled (client gone or stream aborted).
func (se *session) writeLoop() {
	for {
		select {
		case ev := <-se.send:
			se.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := se.conn.WriteJSON(ev); err != nil {
				se.cancel()
				se.conn.Close()
				return
			}
		case <-se.ctx.Done():
			return
		}
	}
}

// emit queues an event for the client. A queue that stays full past the
// send timeout means the consumer cannot keep up; the session aborts.
// Returns false when the event could not be delivered.
func (se *session) emit(ev any) bool {
	select {
	case se.send <- ev:
		return true
	case <-se.ctx.Done():
		return false
	case <-time.After(sendTimeout):
		se.log.Warn("session: slow consumer, aborting stream")
		// Best-effort error notification, then tear down.
		select {
		case se.send <- errorEvent{Type: evError, Message: "slow consumer", Code: string(core.CodeSlowConsumer)}:
		default:
		}
		se.cancel()
		se.conn.Close()
		return false
	}
}

// status emits one pipeline progress event.
func (se *session) status(stage, message string) bool {
	return se.emit(statusEvent{Type: evStatus, Stage: stage, Message: message})
}

// fail reports an error event, demoting cancellations to debug logs.
func (se *session) fail(err error) {
	if errors.Is(err, context.Canceled) || core.IsCode(err, core.CodeCancelled) {
		se.log.Debug("session: request cancelled")
		return
	}
	se.emit(errorEvent{Type: evError, Message: err.Error(), Code: string(core.CodeOf(err))})
}

// handleStart runs the full streaming query pipeline for one question.
func (se *session) handleStart(ev clientEvent) {
	start := time.Now()
	outcome := "error"
	defer func() {
		se.srv.metrics.sessionQueriesTotal.WithLabelValues(outcome).Inc()
		se.srv.metrics.sessionQueryDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	ctx := se.ctx
	se.acc = accumulated{}
	if ev.ProjectID == "" || ev.Message == "" {
		se.fail(fmt.Errorf("projectId and message are required"))
		return
	}

	se.status(stageValidating, "checking project access")
	if check := se.srv.cfg.CheckOwnership; check != nil {
		if err := check(ctx, se.ownerID, ev.ProjectID); err != nil {
			se.fail(err)
			return
		}
	}

	se.status(stageConversation, "resolving conversation")
	conv, err := se.resolveConversation(ctx, ev)
	if err != nil {
		se.fail(err)
		return
	}

	userMsg, err := se.srv.store.AppendMessage(ctx, &core.Message{
		ConversationID: conv.ID,
		Role:           core.RoleUser,
		Content:        ev.Message,
	})
	if err != nil {
		se.fail(err)
		return
	}
	se.emit(messageEvent{
		Type:      evUserMessage,
		ID:        userMsg.ID,
		Role:      string(userMsg.Role),
		Content:   userMsg.Content,
		CreatedAt: userMsg.CreatedAt.UTC().Format(time.RFC3339),
	})

	se.status(stageMemory, "building conversation memory")
	memMsgs, err := se.srv.memory.Build(ctx, conv.ID)
	if err != nil {
		se.fail(err)
		return
	}
	// The pending question was just persisted, so it is also the last
	// memory message; drop it to avoid sending the question twice.
	if n := len(memMsgs); n > 0 && memMsgs[n-1].Role == core.ChatRoleUser && memMsgs[n-1].Content == ev.Message {
		memMsgs = memMsgs[:n-1]
	}

	se.status(stageEmbedding, "embedding question")
	vector, err := se.srv.engine.EmbedQuery(ctx, ev.Message)
	if err != nil {
		se.fail(err)
		return
	}

	se.status(stageSearch, "searching documents")
	matches, err := se.srv.engine.Search(ctx, ev.ProjectID, vector)
	if err != nil {
		se.fail(err)
		return
	}
	sources := rag.SourcesFromMatches(matches)

	se.status(stageGenerating, "generating answer")
	previews := make([]sourcePreview, 0, len(sources))
	for _, src := range sources {
		previews = append(previews, sourcePreview(src))
	}
	se.emit(streamStartEvent{Type: evStreamStart, SourcesPreview: previews})

	prompt := rag.BuildPrompt(memMsgs, matches, ev.Message)
	completion, err := se.srv.model.Stream(ctx, prompt, func(delta string) error {
		return se.streamDelta(delta)
	})
	if err != nil {
		if ctx.Err() != nil || core.IsCode(err, core.CodeCancelled) {
			// Client went away mid-stream: no assistant message is
			// persisted.
			outcome = "cancelled"
			se.log.Debug("session: stream cancelled by client")
			return
		}
		se.fail(err)
		return
	}

	se.status(stageSaving, "saving answer")
	assistantMsg, err := se.srv.store.AppendMessage(ctx, &core.Message{
		ConversationID: conv.ID,
		Role:           core.RoleAssistant,
		Content:        completion.Content,
		Metadata: &core.MessageMetadata{
			TokensUsed: completion.Usage.TotalTokens,
			Sources:    sources,
		},
	})
	if err != nil {
		se.fail(err)
		return
	}

	se.emit(streamCompleteEvent{
		Type:       evStreamComplete,
		MessageID:  assistantMsg.ID,
		Content:    completion.Content,
		TokensUsed: completion.Usage.TotalTokens,
		Sources:    sources,
	})
	se.status(stageCompleted, "")
	outcome = "ok"
}

// streamDelta emits one incremental chunk, maintaining the running full
// content across the stream.
func (se *session) streamDelta(delta string) error {
	se.acc.full += delta
	if !se.emit(streamChunkEvent{Type: evStreamChunk, Content: delta, FullContent: se.acc.full}) {
		return core.E(core.CodeCancelled, "client disconnected")
	}
	return nil
}

// resolveConversation loads the requested conversation or creates a fresh
// one titled after the question.
func (se *session) resolveConversation(ctx context.Context, ev clientEvent) (*core.Conversation, error) {
	if ev.ConversationID != "" {
		conv, err := se.srv.store.GetConversation(ctx, ev.ConversationID)
		if err != nil {
			return nil, err
		}
		if conv.ProjectID != ev.ProjectID {
			return nil, fmt.Errorf("conversation %s does not belong to project %s", conv.ID, ev.ProjectID)
		}
		return conv, nil
	}

	title := ev.Message
	if len([]rune(title)) > titleLen {
		title = string([]rune(title)[:titleLen])
	}
	conv, err := se.srv.store.CreateConversation(ctx, &core.Conversation{
		ProjectID: ev.ProjectID,
		Title:     "Chat: " + title + "...",
	})
	if err != nil {
		return nil, err
	}
	se.emit(conversationCreatedEvent{Type: evConversationCreated, ID: conv.ID, Title: conv.Title})
	return conv, nil
}

// handleListConversations answers a conversation listing request.
func (se *session) handleListConversations(ev clientEvent) {
	convs, err := se.srv.store.ListConversations(se.ctx, ev.ProjectID)
	if err != nil {
		se.fail(err)
		return
	}
	summaries := make([]conversationSummary, 0, len(convs))
	for _, c := range convs {
		summaries = append(summaries, conversationSummary{
			ID:        c.ID,
			Title:     c.Title,
			CreatedAt: c.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	se.emit(conversationListEvent{Type: evConversationList, Conversations: summaries})
}

// handleLoadConversation answers a conversation load request with the full
// message log.
func (se *session) handleLoadConversation(ev clientEvent) {
	conv, err := se.srv.store.GetConversation(se.ctx, ev.ConversationID)
	if err != nil {
		se.fail(err)
		return
	}
	msgs, err := se.srv.store.Messages(se.ctx, conv.ID)
	if err != nil {
		se.fail(err)
		return
	}
	out := make([]messageEvent, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, messageEvent{
			ID:        m.ID,
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	se.emit(conversationLoadedEvent{Type: evConversationLoaded, ID: conv.ID, Title: conv.Title, Messages: out})
}
