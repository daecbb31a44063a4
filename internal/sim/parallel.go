package sim

import (
	"context"
	"sync"
)

// Batch runs independent simulators concurrently.
type Batch struct {
	sims []*Simulator
	cfgs []Config
}

func NewBatch() *Batch {
	return &Batch{}
}

func (b *Batch) Add(s *Simulator, cfg Config) {
	b.sims = append(b.sims, s)
	b.cfgs = append(b.cfgs, cfg)
}

func (b *Batch) Len() int { return len(b.sims) }

// Run returns the results in the order the simulators were added. Results
// of failed runs are partial; the first error is returned.
func (b *Batch) Run(ctx context.Context) ([]*Result, error) {
	results := make([]*Result, len(b.sims))
	errs := make([]error, len(b.sims))

	var wg sync.WaitGroup
	for i := range b.sims {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = b.sims[idx].Run(ctx, b.cfgs[idx])
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}

	return results, nil
}
