// Package gapscan periodically walks every stored conversation and reports
// the predecessors that are missing from the loaded window, which is what the
// pagination layer needs to fetch next.
package gapscan

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/prometheus/client_golang/prometheus"

	"reportchain/pkg/chain"
	"reportchain/pkg/config"
	"reportchain/pkg/logger"
	"reportchain/pkg/store"
	"reportchain/pkg/telemetry"
)

// Report is the scan result for one conversation.
type Report struct {
	ReportID string   `json:"report_id"`
	Actions  int      `json:"actions"`
	Segments int      `json:"segments"`
	Missing  []string `json:"missing"`
}

// HasGap reports whether the loaded window is split or starts mid-history.
func (r Report) HasGap() bool {
	return len(r.Missing) > 0
}

// Scanner runs gap scans against a store.
type Scanner struct {
	store store.ConversationActionStore
	cron  string
	retry time.Duration

	gaps  prometheus.Gauge
	scans prometheus.Counter

	mu      sync.Mutex
	running bool
}

// New builds a scanner and registers its metrics with reg (nil skips
// registration).
func New(s store.ConversationActionStore, cfg config.GapScanConfig, reg prometheus.Registerer) (*Scanner, error) {
	sc := &Scanner{
		store: s,
		cron:  cfg.Cron,
		retry: cfg.PollInterval.Duration(),
		gaps: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "reportchain",
			Name:      "conversation_gaps",
			Help:      "Missing predecessors found by the last gap scan.",
		}),
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "reportchain",
			Name:      "gap_scans_total",
			Help:      "Completed gap scans.",
		}),
	}
	if sc.retry <= 0 {
		sc.retry = 30 * time.Second
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{sc.gaps, sc.scans} {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("register gap scan metrics: %w", err)
			}
		}
	}
	return sc, nil
}

// Start runs the scanner on its cron schedule until ctx is done. The returned
// function cancels the loop and waits for it to exit.
func (s *Scanner) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	logger.Info("gap_scan_enabled", "cron", s.cron)
	go func() {
		defer close(done)
		s.scheduleLoop(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (s *Scanner) scheduleLoop(ctx context.Context) {
	for {
		next, err := gronx.NextTickAfter(s.cron, time.Now(), false)
		if err != nil {
			logger.Error("gap_scan_nexttick_failed", "cron", s.cron, "error", err)
			if !sleep(ctx, s.retry) {
				return
			}
			continue
		}
		if !sleep(ctx, time.Until(next)) {
			return
		}
		if _, err := s.runJob(ctx); err != nil && ctx.Err() == nil {
			logger.Error("gap_scan_failed", "error", err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// runJob skips the scan when a previous one is still running.
func (s *Scanner) runJob(ctx context.Context) ([]Report, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		logger.Warn("gap_scan_skipped", "reason", "previous scan still running")
		return nil, nil
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()
	return s.ScanOnce(ctx)
}

// ScanOnce scans every conversation and returns one report per
// conversation, in conversation id order.
func (s *Scanner) ScanOnce(ctx context.Context) ([]Report, error) {
	tr := telemetry.Track("gap_scan")
	defer tr.Finish()

	ids, err := s.store.Conversations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	tr.Mark("list_conversations")

	reports := make([]Report, 0, len(ids))
	total := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep, err := Scan(ctx, s.store, id)
		if err != nil {
			return nil, err
		}
		if rep.HasGap() {
			logger.Info("gap_detected", "report_id", id, "segments", rep.Segments, "missing", rep.Missing)
		}
		total += len(rep.Missing)
		reports = append(reports, rep)
	}
	tr.Mark("scan_conversations")

	s.gaps.Set(float64(total))
	s.scans.Inc()
	logger.Debug("gap_scan_complete", "conversations", len(ids), "missing", total)
	return reports, nil
}

// Scan inspects a single conversation.
func Scan(ctx context.Context, s store.ConversationActionStore, reportID string) (Report, error) {
	actions, err := s.GetActions(ctx, reportID)
	if err != nil {
		return Report{}, fmt.Errorf("read actions of %s: %w", reportID, err)
	}
	sorted := chain.SortActions(store.Values(actions), true)
	return Report{
		ReportID: reportID,
		Actions:  len(sorted),
		Segments: len(chain.Segments(sorted)),
		Missing:  chain.MissingPredecessors(sorted),
	}, nil
}
