package session

import (
	"context"
	"sync"
	"time"
)

// Registry tracks the per-chat scan and monitor sessions. Starting a
// scan is idempotent, stopping one that is not running is a no-op, and
// a chat gets at most one monitor at a time.
type Registry struct {
	ScanDeps    ScanDeps
	MonitorDeps MonitorDeps

	mu       sync.Mutex
	scans    map[int64]*ScanSession
	monitors map[int64]*Monitor
}

func NewRegistry(scanDeps ScanDeps, monitorDeps MonitorDeps) *Registry {
	return &Registry{
		ScanDeps:    scanDeps,
		MonitorDeps: monitorDeps,
		scans:       make(map[int64]*ScanSession),
		monitors:    make(map[int64]*Monitor),
	}
}

// StartScan launches the scan loop for a chat. It reports false when a
// session is already running; the existing session is left untouched.
func (r *Registry) StartScan(ctx context.Context, chatID int64, query string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.scans[chatID]; ok {
		select {
		case <-existing.done:
			// fell over without being stopped; replace it
		default:
			return false
		}
	}
	s := newScanSession(chatID, query, r.ScanDeps)
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	r.scans[chatID] = s
	go s.run(runCtx)
	return true
}

// StopScan cancels the chat's scan loop and waits for it to exit.
func (r *Registry) StopScan(chatID int64) bool {
	r.mu.Lock()
	s, ok := r.scans[chatID]
	if ok {
		delete(r.scans, chatID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.cancel()
	<-s.done
	return true
}

// ScanState returns the running session's last summary.
func (r *Registry) ScanState(chatID int64) (ScanState, bool) {
	r.mu.Lock()
	s, ok := r.scans[chatID]
	r.mu.Unlock()
	if !ok {
		return ScanState{}, false
	}
	return s.State(), true
}

// StartMonitor launches a bounded fill monitor over one market. Unlike
// scans, a second start while one is running is rejected rather than
// ignored.
func (r *Registry) StartMonitor(ctx context.Context, chatID int64, conditionID, tokenID string, duration, poll time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.monitors[chatID]; ok {
		select {
		case <-existing.done:
			delete(r.monitors, chatID)
		default:
			return false
		}
	}
	m := newMonitor(chatID, conditionID, tokenID, duration, poll, r.MonitorDeps)
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	r.monitors[chatID] = m
	go func() {
		m.run(runCtx)
		r.mu.Lock()
		if r.monitors[chatID] == m {
			delete(r.monitors, chatID)
		}
		r.mu.Unlock()
	}()
	return true
}

// StopMonitor ends the chat's monitor early.
func (r *Registry) StopMonitor(chatID int64) bool {
	r.mu.Lock()
	m, ok := r.monitors[chatID]
	if ok {
		delete(r.monitors, chatID)
	}
	r.mu.Unlock()
	if !ok {
		return false
	}
	m.cancel()
	<-m.done
	return true
}

// MonitorRunning reports whether a monitor is active for the chat.
func (r *Registry) MonitorRunning(chatID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.monitors[chatID]
	if !ok {
		return false
	}
	select {
	case <-m.done:
		return false
	default:
		return true
	}
}

// Shutdown stops every session and waits for them to finish.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	scans := make([]*ScanSession, 0, len(r.scans))
	for id, s := range r.scans {
		scans = append(scans, s)
		delete(r.scans, id)
	}
	monitors := make([]*Monitor, 0, len(r.monitors))
	for id, m := range r.monitors {
		monitors = append(monitors, m)
		delete(r.monitors, id)
	}
	r.mu.Unlock()
	for _, s := range scans {
		s.cancel()
		<-s.done
	}
	for _, m := range monitors {
		m.cancel()
		<-m.done
	}
}
