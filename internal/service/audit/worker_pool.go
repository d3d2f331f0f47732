package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// unitOfWork is one (technician, date) pair in a batch run.
type unitOfWork struct {
	technicianID uuid.UUID
	date         time.Time
}

func (u unitOfWork) key() string {
	return u.technicianID.String() + "/" + u.date.Format("2006-01-02")
}

type unitResult struct {
	unit unitOfWork
	err  error
}

// workerPool fans batch units across a fixed set of workers. The analyze
// function carries all per-unit semantics; the pool only handles dispatch,
// cancellation and result collection.
type workerPool struct {
	analyze func(ctx context.Context, technicianID uuid.UUID, date time.Time) error
	workers int
	logger  *zap.Logger
}

func newWorkerPool(analyze func(ctx context.Context, technicianID uuid.UUID, date time.Time) error, workers int, logger *zap.Logger) *workerPool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &workerPool{analyze: analyze, workers: workers, logger: logger}
}

// Run processes every unit and aggregates outcomes. Cancellation stops
// dispatch; units already picked up still finish.
func (p *workerPool) Run(ctx context.Context, units []unitOfWork) *BatchResult {
	tasks := make(chan unitOfWork)
	results := make(chan unitResult, p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, tasks, results, &wg)
	}

	go func() {
		defer close(tasks)
		for _, u := range units {
			select {
			case tasks <- u:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	res := &BatchResult{Failures: make(map[string]string)}
	for r := range results {
		if r.err != nil {
			res.Skipped++
			res.Failures[r.unit.key()] = r.err.Error()
			p.logger.Warn("unit of work skipped",
				zap.String("technician_id", r.unit.technicianID.String()),
				zap.String("date", r.unit.date.Format("2006-01-02")),
				zap.Error(r.err))
			continue
		}
		res.Analyzed++
	}
	return res
}

func (p *workerPool) worker(ctx context.Context, tasks <-chan unitOfWork, results chan<- unitResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for u := range tasks {
		results <- unitResult{unit: u, err: p.analyze(ctx, u.technicianID, u.date)}
	}
}
