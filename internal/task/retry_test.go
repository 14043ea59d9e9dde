package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aperturelabs/deepquery/internal/events"
	"github.com/aperturelabs/deepquery/internal/research"
)

func init() {
	backoffUnit = time.Millisecond
}

func TestRunWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	result, err := RunWithRetry(context.Background(), nil, "plan", func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" || calls != 1 {
		t.Errorf("result=%q calls=%d, want ok/1", result, calls)
	}
}

func TestRunWithRetryRetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	result, err := RunWithRetry(context.Background(), nil, "search", func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", &research.ProviderTransientError{Err: errors.New("timeout")}
		}
		return "recovered", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "recovered" || calls != 2 {
		t.Errorf("result=%q calls=%d, want recovered/2", result, calls)
	}
}

func TestRunWithRetryGivesUpAfterMaxRetries(t *testing.T) {
	calls := 0
	_, err := RunWithRetry(context.Background(), nil, "evaluate", func(ctx context.Context) (string, error) {
		calls++
		return "", &research.ProviderTransientError{Err: errors.New("still down")}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != MaxRetries+1 {
		t.Errorf("calls = %d, want %d", calls, MaxRetries+1)
	}
}

func TestRunWithRetryDoesNotRetryNonTransientError(t *testing.T) {
	calls := 0
	sentinel := errors.New("bad config")
	_, err := RunWithRetry(context.Background(), nil, "plan", func(ctx context.Context) (string, error) {
		calls++
		return "", sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want sentinel", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (non-transient errors are not retried)", calls)
	}
}

func TestRunWithRetryEmitsAgentFailedOnFinalFailure(t *testing.T) {
	bus := events.NewBus(4)
	ch := bus.Subscribe(events.EventAgentFailed)

	_, err := RunWithRetry(context.Background(), bus, "completeness", func(ctx context.Context) (string, error) {
		return "", &research.ProviderTransientError{Err: errors.New("down")}
	})
	if err == nil {
		t.Fatal("expected error")
	}

	select {
	case ev := <-ch:
		data, ok := ev.Data.(events.AgentFailedData)
		if !ok {
			t.Fatalf("Data type = %T, want AgentFailedData", ev.Data)
		}
		if data.Phase != "completeness" || !data.Retryable {
			t.Errorf("data = %+v, want phase=completeness retryable=true", data)
		}
	case <-time.After(time.Second):
		t.Fatal("no EventAgentFailed published")
	}
}
