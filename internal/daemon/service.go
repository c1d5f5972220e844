// Package daemon runs the scheduler in the background and serves the
// association's arrears status over HTTP/SSE.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/theirongolddev/esusu/internal/cycle"
	"github.com/theirongolddev/esusu/internal/model"
	"github.com/theirongolddev/esusu/internal/schedule"
)

// Config controls the daemon runtime behavior.
type Config struct {
	Interval     time.Duration
	Addr         string
	EventsBuffer int
}

// Ledger is the read side the daemon summarizes.
type Ledger interface {
	ListActivePlans(ctx context.Context) ([]model.Plan, error)
	ListBalances(ctx context.Context) ([]model.AccumulatedBalance, error)
	ListReconciliations(ctx context.Context) ([]model.WeeklyReconciliation, error)
	VaultBalance(ctx context.Context) (decimal.Decimal, error)
}

// Snapshot is a compact arrears state for status/event payloads.
type Snapshot struct {
	At                 time.Time       `json:"at"`
	Week               int             `json:"week"`
	Day                int             `json:"day"`
	CycleEnded         bool            `json:"cycle_ended,omitempty"`
	ActivePlans        int             `json:"active_plans"`
	PlansInArrears     int             `json:"plans_in_arrears"`
	BalanceOutstanding decimal.Decimal `json:"balance_outstanding"`
	LastReconciledWeek int             `json:"last_reconciled_week"`
	VaultBalance       decimal.Decimal `json:"vault_balance"`
}

// Delta captures snapshot deltas between polls.
type Delta struct {
	PlansInArrears     int             `json:"plans_in_arrears"`
	BalanceOutstanding decimal.Decimal `json:"balance_outstanding"`
	VaultBalance       decimal.Decimal `json:"vault_balance"`
	Reconciled         int             `json:"reconciled_weeks"`
}

func (d Delta) isZero() bool {
	return d.PlansInArrears == 0 &&
		d.BalanceOutstanding.IsZero() &&
		d.VaultBalance.IsZero() &&
		d.Reconciled == 0
}

// TriggerRun describes one scheduler execution in an event.
type TriggerRun struct {
	Name    string `json:"name"`
	Date    string `json:"date"`
	Summary string `json:"summary,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Event is emitted when the arrears state changes or a trigger runs.
type Event struct {
	ID        int64       `json:"id"`
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Snapshot  Snapshot    `json:"snapshot"`
	Delta     *Delta      `json:"delta,omitempty"`
	Trigger   *TriggerRun `json:"trigger,omitempty"`
}

// TriggerInfo describes a configured trigger in /v1/status.
type TriggerInfo struct {
	Name   string `json:"name"`
	At     string `json:"at"`
	Window string `json:"window"`
}

// Status is served at /v1/status.
type Status struct {
	StartedAt       time.Time     `json:"started_at"`
	LastPollAt      time.Time     `json:"last_poll_at"`
	PollIntervalSec int           `json:"poll_interval_sec"`
	PollCount       int64         `json:"poll_count"`
	Triggers        []TriggerInfo `json:"triggers"`
	LastRuns        []TriggerRun  `json:"last_runs,omitempty"`
	Summary         Snapshot      `json:"summary"`
	LastError       string        `json:"last_error,omitempty"`
	EventCount      int           `json:"event_count"`
	SubscriberCount int           `json:"subscriber_count"`
}

// Service provides the daemon runtime and HTTP API.
type Service struct {
	cfg       Config
	ledger    Ledger
	scheduler *schedule.Scheduler
	cal       cycle.Calendar
	clock     cycle.Clock
	log       logrus.FieldLogger

	mu          sync.RWMutex
	startedAt   time.Time
	lastPollAt  time.Time
	pollCount   int64
	lastError   string
	hasSnapshot bool
	snapshot    Snapshot
	lastRuns    map[string]TriggerRun
	nextEventID int64
	events      []Event

	nextSubID int
	subs      map[int]chan Event
}

// New returns a daemon service. Each poll ticks the scheduler at clock's time.
func New(cfg Config, ledger Ledger, scheduler *schedule.Scheduler, cal cycle.Calendar, clock cycle.Clock, log logrus.FieldLogger) *Service {
	if cfg.Interval < 2*time.Second {
		cfg.Interval = 30 * time.Second
	}
	if cfg.EventsBuffer < 1 {
		cfg.EventsBuffer = 200
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8788"
	}

	return &Service{
		cfg:       cfg,
		ledger:    ledger,
		scheduler: scheduler,
		cal:       cal,
		clock:     clock,
		log:       log,
		startedAt: clock.Now(),
		lastRuns:  make(map[string]TriggerRun),
		subs:      make(map[int]chan Event),
	}
}

// Handler returns the HTTP API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/status", s.handleStatus)
	mux.HandleFunc("/v1/events", s.handleEvents)
	mux.HandleFunc("/v1/stream", s.handleStream)
	return mux
}

// Run starts HTTP endpoints and polling until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Seed initial snapshot so status is useful immediately.
	s.pollOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		case <-ticker.C:
			s.pollOnce(ctx)
		case err := <-errCh:
			return fmt.Errorf("daemon http server: %w", err)
		}
	}
}

func (s *Service) pollOnce(ctx context.Context) {
	now := s.clock.Now()

	for _, run := range s.scheduler.Tick(ctx, now) {
		tr := TriggerRun{Name: run.Trigger, Date: run.Date.Format(cycle.DateLayout), Summary: run.Summary}
		if run.Err != nil {
			tr.Error = run.Err.Error()
		}
		s.mu.Lock()
		s.lastRuns[tr.Name] = tr
		s.nextEventID++
		ev := Event{ID: s.nextEventID, Type: "trigger", Timestamp: now, Snapshot: s.snapshot, Trigger: &tr}
		s.mu.Unlock()
		s.publishEvent(ev)
	}

	snap, err := s.takeSnapshot(ctx, now)
	if err != nil {
		s.mu.Lock()
		s.lastError = err.Error()
		s.lastPollAt = now
		s.pollCount++
		s.mu.Unlock()
		s.log.WithError(err).Error("daemon poll")
		return
	}

	var (
		ev      Event
		publish bool
	)

	s.mu.Lock()
	prev := s.snapshot
	prevExists := s.hasSnapshot

	s.hasSnapshot = true
	s.snapshot = snap
	s.lastPollAt = now
	s.pollCount++
	s.lastError = ""

	if !prevExists {
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: "snapshot", Timestamp: now, Snapshot: snap}
		publish = true
	} else if delta := diffSnapshots(prev, snap); !delta.isZero() {
		s.nextEventID++
		ev = Event{ID: s.nextEventID, Type: "arrears_delta", Timestamp: now, Snapshot: snap, Delta: &delta}
		publish = true
	}
	s.mu.Unlock()

	if publish {
		s.publishEvent(ev)
	}
}

func (s *Service) takeSnapshot(ctx context.Context, now time.Time) (Snapshot, error) {
	snap := Snapshot{At: now, BalanceOutstanding: decimal.Zero, VaultBalance: decimal.Zero}

	pos, err := s.cal.Locate(now)
	switch {
	case err == nil:
		snap.Week, snap.Day = pos.Week, pos.Day
	case errors.Is(err, cycle.ErrAfterEnd):
		snap.CycleEnded = true
	}

	plans, err := s.ledger.ListActivePlans(ctx)
	if err != nil {
		return snap, fmt.Errorf("list plans: %w", err)
	}
	snap.ActivePlans = len(plans)

	balances, err := s.ledger.ListBalances(ctx)
	if err != nil {
		return snap, fmt.Errorf("list balances: %w", err)
	}
	for _, b := range balances {
		if b.RemainingAmount.IsPositive() {
			snap.PlansInArrears++
			snap.BalanceOutstanding = snap.BalanceOutstanding.Add(b.RemainingAmount)
		}
	}

	recs, err := s.ledger.ListReconciliations(ctx)
	if err != nil {
		return snap, fmt.Errorf("list reconciliations: %w", err)
	}
	for _, r := range recs {
		snap.LastReconciledWeek = max(snap.LastReconciledWeek, r.Week)
	}

	if snap.VaultBalance, err = s.ledger.VaultBalance(ctx); err != nil {
		return snap, fmt.Errorf("vault balance: %w", err)
	}
	return snap, nil
}

func diffSnapshots(prev, curr Snapshot) Delta {
	return Delta{
		PlansInArrears:     curr.PlansInArrears - prev.PlansInArrears,
		BalanceOutstanding: curr.BalanceOutstanding.Sub(prev.BalanceOutstanding),
		VaultBalance:       curr.VaultBalance.Sub(prev.VaultBalance),
		Reconciled:         curr.LastReconciledWeek - prev.LastReconciledWeek,
	}
}

func (s *Service) publishEvent(ev Event) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	if len(s.events) > s.cfg.EventsBuffer {
		s.events = s.events[len(s.events)-s.cfg.EventsBuffer:]
	}

	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Service) snapshotStatus() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		StartedAt:       s.startedAt,
		LastPollAt:      s.lastPollAt,
		PollIntervalSec: int(s.cfg.Interval.Seconds()),
		PollCount:       s.pollCount,
		Summary:         s.snapshot,
		LastError:       s.lastError,
		EventCount:      len(s.events),
		SubscriberCount: len(s.subs),
	}
	for _, t := range s.scheduler.Triggers() {
		st.Triggers = append(st.Triggers, TriggerInfo{Name: t.Name, At: t.At.String(), Window: t.Window.String()})
		if run, ok := s.lastRuns[t.Name]; ok {
			st.LastRuns = append(st.LastRuns, run)
		}
	}
	return st
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Service) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.snapshotStatus())
}

func (s *Service) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	events := make([]Event, len(s.events))
	copy(events, s.events)
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := make(chan Event, 16)
	id := s.addSubscriber(ch)
	defer s.removeSubscriber(id)

	current := Event{
		Type:      "snapshot",
		Timestamp: s.clock.Now(),
		Snapshot:  s.snapshotStatus().Summary,
	}
	writeSSE(w, current)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-ch:
			writeSSE(w, ev)
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", ev.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Service) addSubscriber(ch chan Event) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.subs[id] = ch
	return id
}

func (s *Service) removeSubscriber(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
}
