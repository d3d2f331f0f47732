package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Fiore0312/controlli-sub000/internal/domain/correction"
)

// Notifier delivers reminder and escalation notices for open correction
// requests. Delivery transport is a deployment concern; the scheduler only
// decides what is due.
type Notifier interface {
	Remind(ctx context.Context, req *correction.Request, due time.Time) error
	Escalate(ctx context.Context, req *correction.Request, esc correction.Escalation) error
}

// LogNotifier writes notices to the structured log. It stands in wherever no
// mail or chat integration is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Remind(_ context.Context, req *correction.Request, due time.Time) error {
	n.logger.Info("correction reminder due",
		zap.String("request_id", req.ID.String()),
		zap.String("technician_id", req.TechnicianID.String()),
		zap.String("priority", req.Priority.String()),
		zap.Time("due", due),
		zap.Time("deadline", req.Deadline))
	return nil
}

func (n *LogNotifier) Escalate(_ context.Context, req *correction.Request, esc correction.Escalation) error {
	n.logger.Warn("correction escalation due",
		zap.String("request_id", req.ID.String()),
		zap.String("technician_id", req.TechnicianID.String()),
		zap.String("level", esc.Level.String()),
		zap.Time("at", esc.At))
	return nil
}

// ReminderScheduler periodically scans open correction requests and fires
// the reminder and escalation notices that came due since the previous scan.
// Notices are derived from the timetable each request carries, so a restart
// at most replays the notices of one interval.
type ReminderScheduler struct {
	corrections correction.Repository
	notifier    Notifier
	interval    time.Duration
	logger      *zap.Logger

	mu       sync.Mutex
	lastScan time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

func NewReminderScheduler(corrections correction.Repository, notifier Notifier, interval time.Duration, logger *zap.Logger) *ReminderScheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReminderScheduler{
		corrections: corrections,
		notifier:    notifier,
		interval:    interval,
		logger:      logger,
	}
}

// Start launches the scan loop. The first scan window opens at start time,
// so notices that were due before startup are not replayed.
func (s *ReminderScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.lastScan = time.Now()
	s.done = make(chan struct{})

	go s.run(ctx)
	s.logger.Info("reminder scheduler started", zap.Duration("interval", s.interval))
}

// Stop halts the loop and waits for an in-flight scan to finish.
func (s *ReminderScheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("reminder scheduler stopped")
}

func (s *ReminderScheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.Scan(ctx, now); err != nil {
				s.logger.Error("reminder scan failed", zap.Error(err))
			}
		}
	}
}

// Scan fires every notice scheduled in (lastScan, now]. Exported so batch
// tooling can trigger a pass without running the loop.
func (s *ReminderScheduler) Scan(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	since := s.lastScan
	s.lastScan = now
	s.mu.Unlock()

	open, err := s.corrections.ListOpen(ctx)
	if err != nil {
		return err
	}

	for _, req := range open {
		for _, due := range req.Reminders {
			if due.After(since) && !due.After(now) {
				if err := s.notifier.Remind(ctx, req, due); err != nil {
					s.logger.Warn("reminder delivery failed",
						zap.String("request_id", req.ID.String()),
						zap.Error(err))
				}
			}
		}
		for _, esc := range req.Escalations {
			if esc.At.After(since) && !esc.At.After(now) {
				if err := s.notifier.Escalate(ctx, req, esc); err != nil {
					s.logger.Warn("escalation delivery failed",
						zap.String("request_id", req.ID.String()),
						zap.Error(err))
				}
			}
		}
	}
	return nil
}
