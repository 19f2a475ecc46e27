package bulk

import (
	"context"
	"log"
	"time"
)

// Mutator executes one operation (typically a delete) over a large,
// pre-enumerated key set against a provider whose write-rate limit is not
// known in advance. Instead of guessing the limit it adapts: sustained
// success loosens one throttle dimension per batch, any error tightens
// immediately.
//
// Loosening priority: grow the batch size first, then shrink the per-item
// delay, then the per-batch delay. On an error the batch size is halved
// (floor 1), the delays grow, and the failed key is retried once after an
// exponential backoff proportional to the consecutive-error count. A key
// that fails its retry is abandoned and counted, never fatal to the run.
type Mutator struct {
	BatchSize     int
	PerItemDelay  time.Duration
	PerBatchDelay time.Duration

	MaxBatchSize     int
	MinPerItemDelay  time.Duration
	MaxPerItemDelay  time.Duration
	MinPerBatchDelay time.Duration
	MaxPerBatchDelay time.Duration
	MaxBackoff       time.Duration

	// Sleep is swappable for tests; nil means a context-aware time.Sleep.
	Sleep func(ctx context.Context, d time.Duration)
	// Logf defaults to log.Printf.
	Logf func(format string, args ...any)
}

// Result summarizes one run.
type Result struct {
	Processed int
	Errors    int
	Abandoned int

	// final throttle settings, useful as a starting point for a next run
	FinalBatchSize     int
	FinalPerItemDelay  time.Duration
	FinalPerBatchDelay time.Duration
}

// NewMutator returns a Mutator with the default adaptive envelope.
func NewMutator() *Mutator {
	return &Mutator{
		BatchSize:        10,
		PerItemDelay:     100 * time.Millisecond,
		PerBatchDelay:    time.Second,
		MaxBatchSize:     50,
		MinPerItemDelay:  50 * time.Millisecond,
		MaxPerItemDelay:  2 * time.Second,
		MinPerBatchDelay: 500 * time.Millisecond,
		MaxPerBatchDelay: 10 * time.Second,
		MaxBackoff:       30 * time.Second,
	}
}

// Run processes every key. It only returns early on context cancellation;
// per-key errors are tolerated and counted.
func (m *Mutator) Run(ctx context.Context, keys []string, op func(ctx context.Context, key string) error) (Result, error) {
	sleep := m.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	logf := m.Logf
	if logf == nil {
		logf = log.Printf
	}

	batchSize := m.BatchSize
	if batchSize < 1 {
		batchSize = 1
	}
	perItem := m.PerItemDelay
	perBatch := m.PerBatchDelay

	res := Result{}
	consecutiveSuccesses := 0
	consecutiveErrors := 0
	total := len(keys)

	logf("[bulk] %d keys, starting batch=%d perItem=%s perBatch=%s", total, batchSize, perItem, perBatch)

	for i := 0; i < total; {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		end := i + batchSize
		if end > total {
			end = total
		}
		batch := keys[i:end]
		i = end
		batchErrors := 0

		for _, key := range batch {
			if err := ctx.Err(); err != nil {
				return res, err
			}

			err := op(ctx, key)
			if err == nil {
				res.Processed++
				consecutiveSuccesses++
				consecutiveErrors = 0
				if perItem > 0 {
					sleep(ctx, perItem)
				}
				m.report(logf, &res, total, batchSize, perItem, perBatch)
				continue
			}

			res.Errors++
			batchErrors++
			consecutiveErrors++
			consecutiveSuccesses = 0

			// tighten immediately
			if batchSize > 1 {
				batchSize /= 2
			}
			perItem = clampDuration(perItem*3/2, 0, m.MaxPerItemDelay)
			perBatch = clampDuration(perBatch*3/2, 0, m.MaxPerBatchDelay)

			backoff := perBatch << uint(consecutiveErrors-1)
			if backoff > m.MaxBackoff || backoff <= 0 {
				backoff = m.MaxBackoff
			}
			logf("[bulk] error on %q (%d/%d processed), backing off %s: %v",
				key, res.Processed, total, backoff, err)
			sleep(ctx, backoff)

			if retryErr := op(ctx, key); retryErr != nil {
				res.Abandoned++
				logf("[bulk] abandoned %q after retry: %v", key, retryErr)
			} else {
				res.Processed++
				consecutiveErrors = 0
				m.report(logf, &res, total, batchSize, perItem, perBatch)
			}
		}

		// loosen one dimension per fully clean batch
		if batchErrors == 0 && consecutiveSuccesses >= batchSize*3 {
			switch {
			case batchSize < m.MaxBatchSize:
				batchSize = minInt(m.MaxBatchSize, maxInt(batchSize+1, batchSize*3/2))
				logf("[bulk] raising batch size to %d", batchSize)
			case perItem > m.MinPerItemDelay:
				perItem = clampDuration(perItem*4/5, m.MinPerItemDelay, m.MaxPerItemDelay)
				logf("[bulk] lowering per-item delay to %s", perItem)
			case perBatch > m.MinPerBatchDelay:
				perBatch = clampDuration(perBatch*4/5, m.MinPerBatchDelay, m.MaxPerBatchDelay)
				logf("[bulk] lowering per-batch delay to %s", perBatch)
			}
		}

		if i < total && perBatch > 0 {
			sleep(ctx, perBatch)
		}
	}

	res.FinalBatchSize = batchSize
	res.FinalPerItemDelay = perItem
	res.FinalPerBatchDelay = perBatch
	logf("[bulk] done: %d processed, %d errors, %d abandoned (final batch=%d perItem=%s perBatch=%s)",
		res.Processed, res.Errors, res.Abandoned, batchSize, perItem, perBatch)
	return res, nil
}

// report logs progress every 100 processed items with rate and ETA.
func (m *Mutator) report(logf func(string, ...any), res *Result, total, batchSize int, perItem, perBatch time.Duration) {
	if res.Processed == 0 || res.Processed%100 != 0 {
		return
	}
	percent := res.Processed * 100 / total

	// rough rate from the current throttle settings
	perKey := perItem + perBatch/time.Duration(maxInt(batchSize, 1))
	rate := 0.0
	if perKey > 0 {
		rate = float64(time.Second) / float64(perKey)
	}
	remaining := total - res.Processed
	eta := time.Duration(0)
	if rate > 0 {
		eta = time.Duration(float64(remaining)/rate) * time.Second
	}
	logf("[bulk] progress: %d/%d (%d%%), ~%.1f keys/sec, ETA %s",
		res.Processed, total, percent, rate, eta.Round(time.Second))
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if hi > 0 && d > hi {
		return hi
	}
	if d < lo {
		return lo
	}
	return d
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
