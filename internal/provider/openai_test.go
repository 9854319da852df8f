package provider

import (
	"testing"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

func Test_NewOpenAI_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := NewOpenAI(Config{}); err == nil {
		t.Error("want error for missing API key")
	}
}

func Test_NewOpenAI_Defaults(t *testing.T) {
	t.Parallel()

	m, err := NewOpenAI(Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if m.model != DefaultChatModel || m.maxTokens != DefaultMaxTokens {
		t.Errorf("defaults not applied: %s, %d", m.model, m.maxTokens)
	}
}

func Test_ToRequest_MapsRolesAndLimits(t *testing.T) {
	t.Parallel()

	m, _ := NewOpenAI(Config{APIKey: "sk-test", Model: "gpt-4o", MaxTokens: 512})
	req := m.toRequest([]core.ChatMessage{
		{Role: core.ChatRoleSystem, Content: "contexto"},
		{Role: core.ChatRoleUser, Content: "pergunta"},
		{Role: core.ChatRoleAssistant, Content: "resposta"},
	})

	if req.Model != "gpt-4o" || req.MaxTokens != 512 {
		t.Errorf("request config: %s, %d", req.Model, req.MaxTokens)
	}
	if len(req.Messages) != 3 {
		t.Fatalf("messages: %d", len(req.Messages))
	}
	if req.Messages[0].Role != "system" || req.Messages[2].Content != "resposta" {
		t.Errorf("mapping: %+v", req.Messages)
	}
}
