// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package perf aggregates per-frame stage timings into fixed windows.
//
// Samples are kept only until their window closes; each closed window is
// logged at debug level and returned to the caller as a Summary.
package perf

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Stage is one timed step of a presented frame.
type Stage int

const (
	StageReadback Stage = iota // GPU to host copy
	StageConvert               // CPU scale and format conversion
	StageBlit                  // GPU blit including the fence wait
	StageFlush                 // explicit CPU-write flush
	StagePresent               // mode commit or page flip
	NumStages
)

var stageNames = [NumStages]string{"readback", "convert", "blit", "flush", "present"}

func (s Stage) String() string {
	if s < 0 || s >= NumStages {
		return "unknown"
	}
	return stageNames[s]
}

// DefaultWindow is the aggregation window length.
const DefaultWindow = time.Second

// Sample carries the stage timings of one frame.
type Sample struct {
	Stages  [NumStages]time.Duration
	Dropped bool
}

// Summary is the aggregate of one window.
type Summary struct {
	Window  time.Duration
	Frames  int
	Dropped int
	Avg     [NumStages]time.Duration
	Max     [NumStages]time.Duration
}

// FPS returns presented frames per second over the window.
func (s Summary) FPS() float64 {
	if s.Window <= 0 {
		return 0
	}
	return float64(s.Frames-s.Dropped) / s.Window.Seconds()
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int("frames", s.Frames),
		slog.Int("dropped", s.Dropped),
		slog.Float64("fps", s.FPS()),
	}
	for st := Stage(0); st < NumStages; st++ {
		if s.Max[st] == 0 {
			continue
		}
		attrs = append(attrs, slog.Group(st.String(),
			slog.Duration("avg", s.Avg[st]),
			slog.Duration("max", s.Max[st]),
		))
	}
	return slog.GroupValue(attrs...)
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithWindow sets the window length.
func WithWindow(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.window = d
		}
	}
}

// Monitor accumulates samples. It is not safe for concurrent use.
type Monitor struct {
	now    func() time.Time
	window time.Duration

	start   time.Time
	frames  int
	dropped int
	sum     [NumStages]time.Duration
	max     [NumStages]time.Duration
}

// New returns a Monitor whose first window starts now.
func New(opts ...Option) *Monitor {
	m := &Monitor{now: time.Now, window: DefaultWindow}
	for _, opt := range opts {
		opt(m)
	}
	m.start = m.now()
	return m
}

// Now returns the monitor clock.
func (m *Monitor) Now() time.Time { return m.now() }

// Since returns the time elapsed since t on the monitor clock.
func (m *Monitor) Since(t time.Time) time.Duration { return m.now().Sub(t) }

// Record adds a sample. When the current window has elapsed it is closed,
// logged and returned with ok set.
func (m *Monitor) Record(s Sample) (sum Summary, ok bool) {
	m.frames++
	if s.Dropped {
		m.dropped++
	}
	for i, d := range s.Stages {
		m.sum[i] += d
		if d > m.max[i] {
			m.max[i] = d
		}
	}

	now := m.now()
	elapsed := now.Sub(m.start)
	if elapsed < m.window {
		return Summary{}, false
	}

	sum = Summary{
		Window:  elapsed,
		Frames:  m.frames,
		Dropped: m.dropped,
		Max:     m.max,
	}
	for i := range m.sum {
		sum.Avg[i] = m.sum[i] / time.Duration(m.frames)
	}
	slogger().Debug("perf: window", "summary", sum)

	m.start = now
	m.frames, m.dropped = 0, 0
	m.sum = [NumStages]time.Duration{}
	m.max = [NumStages]time.Duration{}
	return sum, true
}

// nopHandler silently discards all log records.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(slog.New(nopHandler{}))
}

func slogger() *slog.Logger { return loggerPtr.Load() }

// SetLogger sets the logger for window summaries. nil restores silence.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(nopHandler{})
	}
	loggerPtr.Store(l)
}
