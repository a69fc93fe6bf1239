package verify

import (
	"context"
	"testing"

	"github.com/veriscore/veriscore/internal/model"
)

func TestBatchProcessor_Process(t *testing.T) {
	h := newHarness(t, fourProviders(), map[string]model.ProviderResult{
		"alpha": verdictResult("true", 0.9),
		"beta":  verdictResult("true", 0.9),
		"gamma": verdictResult("true", 0.9),
		"delta": verdictResult("true", 0.9),
	}, 4)

	claims := []string{
		"The first claim",
		"The second claim",
		"   ", // Invalid, must surface its own error without failing the batch
		"The fourth claim",
	}

	bp := NewBatchProcessor(h.orch, 2)
	items := bp.Process(context.Background(), claims, model.DomainGeneral, "pro")

	if len(items) != 4 {
		t.Fatalf("Expected 4 items, got %d", len(items))
	}
	for i, want := range claims {
		if items[i].Claim != want {
			t.Errorf("Item %d out of order: got %q, want %q", i, items[i].Claim, want)
		}
	}
	for _, i := range []int{0, 1, 3} {
		if items[i].Err != nil {
			t.Errorf("Item %d failed: %v", i, items[i].Err)
		}
		if items[i].Result == nil || items[i].Result.Verdict != model.VerdictTrue {
			t.Errorf("Item %d missing TRUE verdict: %+v", i, items[i].Result)
		}
	}
	if items[2].Err == nil {
		t.Error("Expected invalid claim to carry an error")
	}
}

func TestBatchProcessor_CancelledContext(t *testing.T) {
	h := newHarness(t, fourProviders(), map[string]model.ProviderResult{
		"alpha": verdictResult("true", 0.9),
		"beta":  verdictResult("true", 0.9),
		"gamma": verdictResult("true", 0.9),
		"delta": verdictResult("true", 0.9),
	}, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bp := NewBatchProcessor(h.orch, 2)
	items := bp.Process(ctx, []string{"first", "second", "third"}, model.DomainGeneral, "pro")

	if len(items) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(items))
	}
	for i, item := range items {
		if item.Result == nil && item.Err == nil {
			t.Errorf("Item %d has neither result nor error", i)
		}
	}
}
