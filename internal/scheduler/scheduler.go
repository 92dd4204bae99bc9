package scheduler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"github.com/nextlevelbuilder/tinyclaw/internal/bus"
)

// Callback receives the synthetic message of a fired job. The scheduler never
// waits for the agent's response; delivery of results is the agent's concern.
type Callback func(msg bus.InboundMessage)

// Scheduler owns the job store and the 1 Hz firing loop.
type Scheduler struct {
	mu       sync.RWMutex
	jobs     map[string]*CronJob
	path     string
	callback Callback
	gron     *gronx.Gronx

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewScheduler loads jobs from path (created on first save when absent).
func NewScheduler(path string) (*Scheduler, error) {
	s := &Scheduler{
		jobs:   make(map[string]*CronJob),
		path:   path,
		gron:   gronx.New(),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetCallback installs the fire handler. Must be called before Start.
func (s *Scheduler) SetCallback(cb Callback) {
	s.mu.Lock()
	s.callback = cb
	s.mu.Unlock()
}

// Start launches the 1 Hz tick loop. Fire times are quantized to the tick,
// so a job never fires more than once per second.
func (s *Scheduler) Start() {
	s.recomputeNextRuns()
	go s.run()
}

// Stop terminates the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *Scheduler) run() {
	defer close(s.doneCh)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			s.tick(now.UnixMilli())
		}
	}
}

func (s *Scheduler) tick(nowMs int64) {
	s.mu.Lock()
	var due []*CronJob
	for _, job := range s.jobs {
		if job.Enabled && job.State.NextRunMs > 0 && job.State.NextRunMs <= nowMs {
			due = append(due, job)
		}
	}
	// Deterministic firing order when several jobs share a tick.
	sort.Slice(due, func(i, j int) bool { return due[i].ID < due[j].ID })

	var dirty bool
	for _, job := range due {
		job.State.LastRunMs = nowMs
		job.State.RunCount++
		next, err := s.nextRun(job, nowMs)
		if err != nil {
			// An expression that stops parsing disables the job instead of
			// hot-looping on it.
			job.Enabled = false
			job.State.NextRunMs = 0
			job.State.LastError = err.Error()
			slog.Error("cron job disabled", "job", job.ID, "error", err)
		} else {
			job.State.NextRunMs = next
		}
		// Exhausted one-shots stay in the table with nextRunMs=0 unless the
		// job asked to be removed.
		if job.DeleteAfterRun {
			delete(s.jobs, job.ID)
		}
		dirty = true
	}
	cb := s.callback
	s.mu.Unlock()

	if dirty {
		if err := s.save(); err != nil {
			slog.Error("cron store save failed", "error", err)
		}
	}

	if cb == nil {
		return
	}
	// Jobs always fire on the system channel so the agent's reply is
	// swallowed unless the payload asked for delivery; the payload target
	// rides in metadata for the deliver path.
	for _, job := range due {
		slog.Info("cron.fire", "job", job.ID, "name", job.Name)
		cb(bus.InboundMessage{
			Channel:  bus.ChannelSystem,
			SenderID: "cron",
			ChatID:   job.ID,
			Content:  job.Payload.Message,
			Deliver:  job.Payload.Deliver,
			Metadata: map[string]string{
				"jobId":          job.ID,
				"origin":         "cron",
				"payloadChannel": job.Payload.Channel,
				"payloadChatId":  job.Payload.ChatID,
			},
		})
	}
}

// nextRun computes the next fire time after nowMs, or 0 for exhausted
// one-shot schedules.
func (s *Scheduler) nextRun(job *CronJob, nowMs int64) (int64, error) {
	switch job.Schedule.Kind {
	case "interval":
		if job.Schedule.EverySeconds <= 0 {
			return 0, fmt.Errorf("interval schedule needs everySeconds > 0")
		}
		return nowMs + job.Schedule.EverySeconds*1000, nil
	case "at":
		if job.State.RunCount > 0 {
			return 0, nil
		}
		return job.Schedule.AtMs, nil
	case "cron":
		if !s.gron.IsValid(job.Schedule.Expr) {
			return 0, fmt.Errorf("invalid cron expression %q", job.Schedule.Expr)
		}
		next, err := gronx.NextTickAfter(job.Schedule.Expr, time.UnixMilli(nowMs), false)
		if err != nil {
			return 0, err
		}
		return next.UnixMilli(), nil
	default:
		return 0, fmt.Errorf("unknown schedule kind %q", job.Schedule.Kind)
	}
}

func (s *Scheduler) recomputeNextRuns() {
	nowMs := time.Now().UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, job := range s.jobs {
		if !job.Enabled {
			continue
		}
		switch job.Schedule.Kind {
		case "at":
			if job.State.RunCount == 0 {
				job.State.NextRunMs = job.Schedule.AtMs
			} else {
				job.State.NextRunMs = 0
			}
		case "interval", "cron":
			next, err := s.nextRun(job, nowMs)
			if err != nil {
				job.Enabled = false
				job.State.LastError = err.Error()
				job.State.NextRunMs = 0
				slog.Error("cron job disabled on load", "job", job.ID, "error", err)
				continue
			}
			job.State.NextRunMs = next
		}
	}
}

// Add creates and persists a job, returning the stored copy.
func (s *Scheduler) Add(name string, schedule Schedule, payload Payload, deleteAfterRun bool) (CronJob, error) {
	nowMs := time.Now().UnixMilli()
	job := &CronJob{
		ID:             uuid.NewString()[:8],
		Name:           name,
		Enabled:        true,
		Schedule:       schedule,
		Payload:        payload,
		CreatedAtMs:    nowMs,
		UpdatedAtMs:    nowMs,
		DeleteAfterRun: deleteAfterRun,
	}
	next, err := s.nextRun(job, nowMs)
	if err != nil {
		return CronJob{}, err
	}
	job.State.NextRunMs = next

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	if err := s.save(); err != nil {
		return *job, err
	}
	return *job, nil
}

// Remove deletes a job by ID.
func (s *Scheduler) Remove(id string) (bool, error) {
	s.mu.Lock()
	_, ok := s.jobs[id]
	delete(s.jobs, id)
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, s.save()
}

// Enable toggles a job on or off.
func (s *Scheduler) Enable(id string, enabled bool) (bool, error) {
	nowMs := time.Now().UnixMilli()
	s.mu.Lock()
	job, ok := s.jobs[id]
	if ok {
		job.Enabled = enabled
		job.UpdatedAtMs = nowMs
		job.State.LastError = ""
		if enabled {
			if next, err := s.nextRun(job, nowMs); err == nil {
				job.State.NextRunMs = next
			} else {
				job.Enabled = false
				job.State.LastError = err.Error()
			}
		} else {
			job.State.NextRunMs = 0
		}
	}
	s.mu.Unlock()
	if !ok {
		return false, nil
	}
	return true, s.save()
}

// List returns all jobs sorted by next run time (disabled jobs last).
func (s *Scheduler) List() []CronJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CronJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].State.NextRunMs, out[j].State.NextRunMs
		if a == 0 {
			a = 1<<62 + out[i].CreatedAtMs
		}
		if b == 0 {
			b = 1<<62 + out[j].CreatedAtMs
		}
		return a < b
	})
	return out
}

// Get returns a job by ID.
func (s *Scheduler) Get(id string) (CronJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return CronJob{}, false
	}
	return *job, true
}

func (s *Scheduler) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("cron store read: %w", err)
	}
	var f jobFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("cron store parse: %w", err)
	}
	for i := range f.Jobs {
		job := f.Jobs[i]
		s.jobs[job.ID] = &job
	}
	return nil
}

// save writes the job file atomically.
func (s *Scheduler) save() error {
	s.mu.RLock()
	f := jobFile{Version: 1, Jobs: make([]CronJob, 0, len(s.jobs))}
	for _, job := range s.jobs {
		f.Jobs = append(f.Jobs, *job)
	}
	s.mu.RUnlock()
	sort.Slice(f.Jobs, func(i, j int) bool { return f.Jobs[i].CreatedAtMs < f.Jobs[j].CreatedAtMs })

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "jobs-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	tmp.Close()
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
