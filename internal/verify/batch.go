package verify

import (
	"context"
	"sync"

	"github.com/veriscore/veriscore/internal/model"
)

// BatchItem is the outcome of one claim in a batch run.
type BatchItem struct {
	Claim  string
	Result *model.ConsensusResult
	Err    error
}

// BatchProcessor verifies many claims concurrently over one orchestrator.
// Concurrency bounds the in-flight verifications; each verification still
// fans out to its own providers underneath.
type BatchProcessor struct {
	orch        *Orchestrator
	concurrency int
}

// NewBatchProcessor creates a batch processor.
func NewBatchProcessor(orch *Orchestrator, concurrency int) *BatchProcessor {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchProcessor{orch: orch, concurrency: concurrency}
}

// Process verifies every claim and returns the items in input order.
// Cancelling ctx stops dispatching new claims; items not reached carry
// the context error.
func (b *BatchProcessor) Process(ctx context.Context, claims []string, domain model.ClaimDomain, tierName string) []BatchItem {
	items := make([]BatchItem, len(claims))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < b.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				result, err := b.orch.Verify(ctx, claims[i], domain, tierName)
				items[i] = BatchItem{Claim: claims[i], Result: result, Err: err}
			}
		}()
	}

dispatch:
	for i := range claims {
		select {
		case <-ctx.Done():
			break dispatch
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	for i := range items {
		if items[i].Result == nil && items[i].Err == nil {
			items[i] = BatchItem{Claim: claims[i], Err: ctx.Err()}
		}
	}
	return items
}
