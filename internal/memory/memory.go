// Package memory builds the bounded conversation context injected ahead of
// each model call. Short conversations use plain buffer memory (a trailing
// window of messages); long ones switch to hybrid memory, where older
// messages are summarized by the chat model and only the recent tail is
// kept verbatim. Frequently mentioned terms are surfaced as entity hints in
// both modes.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Rafael-Dagostim/studyflow-go/internal/config"
	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
	"github.com/Rafael-Dagostim/studyflow-go/internal/logging"
	"github.com/Rafael-Dagostim/studyflow-go/internal/provider"
	"github.com/Rafael-Dagostim/studyflow-go/internal/store"
)

// summaryPrompt instructs the chat model to compress older conversation
// turns. The word cap keeps the summary inside a predictable token budget.
const summaryPrompt = "Summarize the following conversation between a student and an educational " +
	"assistant in at most 200 words. Keep the topics discussed, questions asked, " +
	"and conclusions reached. Reply with the summary only.\n\n"

// Manager builds LLM-ready message lists bounded by a token budget.
type Manager struct {
	// store reads the conversation message log.
	store store.Store
	// model generates summaries for hybrid memory.
	model provider.ChatModel
	// settings holds the resolved memory budgets.
	settings config.MemorySettings
}

// NewManager constructs a Manager from its dependencies and settings.
func NewManager(st store.Store, model provider.ChatModel, settings config.MemorySettings) *Manager {
	if settings.MaxTokens <= 0 {
		settings.MaxTokens = 1500
	}
	if settings.MaxMessages <= 0 {
		settings.MaxMessages = 20
	}
	if settings.SummaryThreshold <= 0 {
		settings.SummaryThreshold = 10
	}
	if settings.EntityThreshold <= 0 {
		settings.EntityThreshold = 2
	}
	return &Manager{store: st, model: model, settings: settings}
}

// Build returns the conversation's memory as an ordered message list:
// an optional summary system note, an optional entity system note, then the
// selected recent messages with roles mapped to provider roles. The total
// estimated token count never exceeds the configured budget.
func (m *Manager) Build(ctx context.Context, conversationID string) ([]core.ChatMessage, error) {
	msgs, err := m.store.Messages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("memory: load messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, nil
	}

	totalTokens := 0
	for _, msg := range msgs {
		totalTokens += core.EstimateTokens(msg.Content)
	}

	hybrid := len(msgs) > m.settings.SummaryThreshold || totalTokens > m.settings.MaxTokens

	var notes []core.ChatMessage
	if hybrid {
		if note := m.summaryNote(ctx, msgs); note != nil {
			notes = append(notes, *note)
		} else {
			hybrid = false
		}
	}
	if note := entityNote(msgs, m.settings.EntityThreshold); note != nil {
		notes = append(notes, *note)
	}

	budget := m.settings.MaxTokens
	kept := notes[:0]
	for _, n := range notes {
		cost := core.EstimateTokens(n.Content)
		if cost > budget {
			continue
		}
		budget -= cost
		kept = append(kept, n)
	}
	notes = kept

	recent := msgs
	if hybrid && len(recent) > m.settings.MaxMessages {
		recent = recent[len(recent)-m.settings.MaxMessages:]
	}

	out := notes
	out = append(out, trailingWindow(recent, budget)...)
	return out, nil
}

// summaryNote summarizes the messages that fall outside the recent window.
// A failed summary never blocks the request: the manager silently falls
// back to buffer memory.
func (m *Manager) summaryNote(ctx context.Context, msgs []*core.Message) *core.ChatMessage {
	if len(msgs) <= m.settings.MaxMessages {
		return nil
	}
	pool := msgs[:len(msgs)-m.settings.MaxMessages]

	var transcript strings.Builder
	for _, msg := range pool {
		transcript.WriteString(strings.ToLower(string(msg.Role)))
		transcript.WriteString(": ")
		transcript.WriteString(msg.Content)
		transcript.WriteString("\n")
	}

	completion, err := m.model.Complete(ctx, []core.ChatMessage{
		{Role: core.ChatRoleUser, Content: summaryPrompt + transcript.String()},
	})
	if err != nil || strings.TrimSpace(completion.Content) == "" {
		logging.FromContext(ctx).Warn("memory: summary generation failed, using buffer memory",
			slog.Int("pool_size", len(pool)))
		return nil
	}

	return &core.ChatMessage{
		Role:    core.ChatRoleSystem,
		Content: "Previous conversation summary: " + strings.TrimSpace(completion.Content),
	}
}

// trailingWindow returns the longest suffix of msgs whose estimated token
// total fits the budget, converted to provider chat messages.
func trailingWindow(msgs []*core.Message, budget int) []core.ChatMessage {
	if budget <= 0 {
		return nil
	}
	start := len(msgs)
	total := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		cost := core.EstimateTokens(msgs[i].Content)
		if total+cost > budget {
			break
		}
		total += cost
		start = i
	}

	out := make([]core.ChatMessage, 0, len(msgs)-start)
	for _, msg := range msgs[start:] {
		out = append(out, core.ChatMessage{
			Role:    providerRole(msg.Role),
			Content: msg.Content,
		})
	}
	return out
}

// providerRole maps a stored message role to the provider role string.
func providerRole(r core.Role) string {
	if r == core.RoleAssistant {
		return core.ChatRoleAssistant
	}
	return core.ChatRoleUser
}
