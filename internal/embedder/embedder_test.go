package embedder

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Rafael-Dagostim/studyflow-go/internal/core"
)

func shortenBackoff(t *testing.T) {
	t.Helper()
	old := retryBaseDelay
	retryBaseDelay = time.Millisecond
	t.Cleanup(func() { retryBaseDelay = old })
}

func Test_WithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	shortenBackoff(t)

	calls := 0
	err := withRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("want success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("want 3 calls, got %d", calls)
	}
}

func Test_WithRetry_ExhaustionIsEmbeddingUnavailable(t *testing.T) {
	shortenBackoff(t)

	calls := 0
	err := withRetry(context.Background(), func() error {
		calls++
		return errors.New("down")
	})
	if !core.IsCode(err, core.CodeEmbeddingUnavailable) {
		t.Errorf("want EmbeddingUnavailable, got %v", err)
	}
	if calls != 3 {
		t.Errorf("want exactly 3 attempts, got %d", calls)
	}
}

func Test_WithRetry_CancelledContext(t *testing.T) {
	shortenBackoff(t)

	ctx, cancel := context.WithCancel(context.Background())
	err := withRetry(ctx, func() error {
		cancel()
		return errors.New("transient")
	})
	if !core.IsCode(err, core.CodeCancelled) {
		t.Errorf("want Cancelled, got %v", err)
	}
}

func Test_WithRetry_ErrorMessageOmitsInput(t *testing.T) {
	shortenBackoff(t)

	secret := "confidential student essay"
	err := withRetry(context.Background(), func() error {
		return errors.New("rate limited")
	})
	if err == nil {
		t.Fatal("want error")
	}
	if got := err.Error(); strings.Contains(got, secret) {
		t.Errorf("error leaks input text: %q", got)
	}
}

func Test_NewOpenAI_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := NewOpenAI(Config{}); err == nil {
		t.Error("want error for missing API key")
	}
}

func Test_NewOpenAI_Defaults(t *testing.T) {
	t.Parallel()

	e, err := NewOpenAI(Config{APIKey: "sk-test"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if e.Dimensions() != DefaultDimensions {
		t.Errorf("dimensions: want %d, got %d", DefaultDimensions, e.Dimensions())
	}
	if e.model != DefaultModel {
		t.Errorf("model: want %s, got %s", DefaultModel, e.model)
	}
}
