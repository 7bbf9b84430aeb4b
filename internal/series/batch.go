package series

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"recon-tracer/internal/logging"
	"recon-tracer/internal/section"
)

// Progress receives batch progress and may ask the batch to stop.
// Implementations must be safe for concurrent use.
type Progress interface {
	Update(message string, pct float64)
	Cancelled() bool
}

type nopProgress struct{}

func (nopProgress) Update(string, float64) {}
func (nopProgress) Cancelled() bool        { return false }

// SectionFunc edits or inspects one freshly loaded section. It reports
// whether the section has to be written back.
type SectionFunc[R any] func(sec *section.Section) (result R, changed bool, err error)

// Map runs fn on every section using the worker pool. Each call gets its
// own section instance. Nothing is written until every call has returned;
// then the changed sections are committed together. When the context is
// cancelled or the progress sink asks to stop, Map returns ErrCancelled and
// the store is untouched. The first failing call aborts the batch.
func Map[R any](ctx context.Context, s *Series, op string, fn SectionFunc[R]) (map[int]R, error) {
	return run(ctx, s, op, s.workers, fn)
}

// Enumerate is Map with a single worker visiting sections in ascending order.
func Enumerate[R any](ctx context.Context, s *Series, op string, fn SectionFunc[R]) (map[int]R, error) {
	return run(ctx, s, op, 1, fn)
}

func run[R any](ctx context.Context, s *Series, op string, limit int, fn SectionFunc[R]) (map[int]R, error) {
	start := time.Now()
	nums := s.SectionNumbers()
	total := float64(len(nums))

	var (
		mu      sync.Mutex
		done    int
		results = make(map[int]R, len(nums))
		changed = make(map[int]*section.Section)
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for _, n := range nums {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil || s.progress.Cancelled() {
				return ErrCancelled
			}
			sec, err := s.LoadSection(gctx, n)
			if err != nil {
				return err
			}
			r, mod, err := fn(sec)
			if err != nil {
				return &SectionError{N: n, Err: err}
			}
			mu.Lock()
			results[n] = r
			if mod {
				changed[n] = sec
			}
			done++
			pct := float64(done) / total * 100
			mu.Unlock()
			s.progress.Update(op, pct)
			return nil
		})
	}
	err := g.Wait()
	if err == nil && (ctx.Err() != nil || s.progress.Cancelled()) {
		err = ErrCancelled
	}
	if err == nil {
		err = s.commit(ctx, changed)
	}
	s.metrics.Observe(ctx, op, err == nil, time.Since(start), len(changed))
	if err != nil {
		if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
			logging.Logger().Debug("batch cancelled", "op", op)
			return nil, ErrCancelled
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logging.Logger().Debug("batch done", "op", op, "sections", len(nums), "written", len(changed))
	return results, nil
}

// commit writes the changed sections in one store call.
func (s *Series) commit(ctx context.Context, changed map[int]*section.Section) error {
	if len(changed) == 0 {
		return nil
	}
	docs := make(map[int][]byte, len(changed))
	for n, sec := range changed {
		data, err := sec.Encode()
		if err != nil {
			return &SectionError{N: n, Err: err}
		}
		docs[n] = data
	}
	if err := s.store.SaveSections(ctx, docs); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
