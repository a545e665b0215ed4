// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scanout

import (
	"errors"
	"fmt"

	"github.com/gogpu/scanout/display"
	"github.com/gogpu/scanout/internal/config"
	"github.com/gogpu/scanout/internal/convert"
	"github.com/gogpu/scanout/internal/parallel"
	"github.com/gogpu/scanout/internal/perf"
)

// Stats reports what a Display has done so far.
type Stats struct {
	// Path is the active presentation path.
	Path PathKind

	// ZeroCopyDisabled is set once zero-copy failed; it is never retried.
	ZeroCopyDisabled bool

	// Halted is set once presentation stopped for good.
	Halted bool

	Frames    uint64 // frames presented
	Dropped   uint64 // frames that returned an error
	Skipped   uint64 // empty frames and ticks without a frame
	Degraded  int    // zero-copy to CPU transitions, at most one
	Failures  int    // current run of consecutive dropped frames
	Reallocs  int    // buffer pool allocations
	Retries   int    // busy page flips retried after a vertical blank
	FlipFails int    // page flips that failed after the retry
}

// Display is an open presentation session on one output. It is not safe
// for concurrent use; present from one goroutine.
type Display struct {
	mgr     *display.Manager
	opts    options
	monitor *perf.Monitor

	// workers is nil when conversion runs on the presenting goroutine.
	workers *parallel.Pool

	path     presentationPath
	frame    uint64
	failures int
	stats    Stats

	zeroCopyDisabled bool
	haltErr          error
	closed           bool
}

// OpenDisplay opens the display device, sets the mode and returns a
// session ready for PresentFrame. Diagnostics are read from the
// environment once and may be overridden with options.
func OpenDisplay(opts ...Option) (*Display, error) {
	flags := config.Load()
	o := defaultOptions(flags)
	for _, opt := range opts {
		opt(&o)
	}

	mgr, err := display.Open(o.displayOptions()...)
	if err != nil {
		return nil, &InitError{Op: "open display", Err: err}
	}

	d := &Display{
		mgr:  mgr,
		opts: o,
		monitor: perf.New(
			perf.WithClock(o.clock),
			perf.WithWindow(o.perfWindow),
		),
	}
	if o.workers > 1 {
		d.workers = parallel.New(o.workers)
	}
	slogger().Info("scanout: display opened",
		"mode", mgr.Mode().String(),
		"plane", o.plane.String(),
		"gpu", o.gpu != nil,
		"convert_workers", max(o.workers, 1),
		"env", flags)
	return d, nil
}

// Mode returns the display mode. It never changes for the session.
func (d *Display) Mode() display.Mode { return d.mgr.Mode() }

// Path returns the active presentation path.
func (d *Display) Path() PathKind {
	if d.path == nil {
		return PathNone
	}
	return d.path.kind()
}

// Stats returns the session counters.
func (d *Display) Stats() Stats {
	s := d.stats
	s.Path = d.Path()
	s.ZeroCopyDisabled = d.zeroCopyDisabled
	s.Halted = d.haltErr != nil
	s.Failures = d.failures
	ms := d.mgr.Stats()
	s.Reallocs = ms.Allocations
	s.Retries = ms.FlipRetries
	s.FlipFails = ms.FlipFailures
	return s
}

// PresentFrame shows one frame. An empty frame is skipped without touching
// the display. A dropped frame returns a *PresentError and the session
// continues; check IsFatal for errors that end it.
func (d *Display) PresentFrame(f Frame) error {
	if d.closed {
		return ErrDisplayClosed
	}
	if d.haltErr != nil {
		return fmt.Errorf("%w: %w", ErrPresentationHalted, d.haltErr)
	}

	if d.opts.testPattern {
		m := d.mgr.Mode()
		f = Frame{Width: int(m.Width), Height: int(m.Height)}
	} else {
		if f.Empty() {
			d.stats.Skipped++
			slogger().Debug("scanout: empty frame skipped", "frame", d.frame)
			return nil
		}
		if err := f.validate(); err != nil {
			d.stats.Dropped++
			return d.presentErr(d.Path(), "validate", err)
		}
		if f.IsGPU() && d.opts.gpu == nil {
			d.stats.Dropped++
			return d.presentErr(d.Path(), "frame", fmt.Errorf("%w: GPU frame without a compute context", ErrUnsupportedFrame))
		}
	}

	if d.path == nil {
		d.selectPath(f)
	}

	var sample perf.Sample
	var err error
	switch p := d.path.(type) {
	case *zeroCopyPath:
		err = p.present(d, f, &sample)
	case *cpuPath:
		err = p.present(d, f, &sample)
	}
	sample.Dropped = err != nil
	d.monitor.Record(sample)
	d.frame++

	if err != nil {
		return d.fail(err)
	}
	d.failures = 0
	d.stats.Frames++
	return nil
}

// PresentNext pulls one frame from p and presents it. A provider with no
// frame makes the tick a no-op.
func (d *Display) PresentNext(p FrameProvider) error {
	if d.closed {
		return ErrDisplayClosed
	}
	if d.opts.testPattern {
		return d.PresentFrame(Frame{})
	}
	f, err := p.NextFrame()
	if errors.Is(err, ErrNoFrameAvailable) {
		d.stats.Skipped++
		return nil
	}
	if err != nil {
		return d.presentErr(d.Path(), "next frame", err)
	}
	return d.PresentFrame(f)
}

// selectPath resolves the session's path from its first frame. A zero-copy
// setup failure disables zero-copy for the session.
func (d *Display) selectPath(f Frame) {
	if f.IsGPU() && d.opts.zeroCopy && !d.opts.testPattern && !d.zeroCopyDisabled {
		zc, err := setupZeroCopy(d, f)
		if err == nil {
			d.path = zc
			slogger().Info("scanout: presentation path", "path", PathZeroCopy.String())
			return
		}
		d.zeroCopyDisabled = true
		slogger().Warn("scanout: zero-copy disabled",
			"err", &AllocError{Path: PathZeroCopy, Op: "setup", Err: err})
	}
	d.path = newCPUPath()
	slogger().Info("scanout: presentation path", "path", PathCPU.String())
}

// fail accounts for a dropped frame and applies the degradation policy.
func (d *Display) fail(err error) error {
	d.stats.Dropped++

	var ae *AllocError
	if errors.As(err, &ae) && ae.Fatal {
		d.halt(err)
		return err
	}
	if errors.Is(err, ErrUnsupportedFrame) {
		return err
	}

	d.failures++
	slogger().Warn("scanout: frame dropped",
		"path", d.Path().String(),
		"consecutive", d.failures,
		"err", err)
	if d.failures < d.opts.threshold {
		return err
	}

	switch p := d.path.(type) {
	case *zeroCopyPath:
		_ = p.release(d)
		d.path = newCPUPath()
		d.zeroCopyDisabled = true
		d.failures = 0
		d.stats.Degraded++
		slogger().Warn("scanout: zero-copy broken, using cpu path", "err", err)
	case *cpuPath:
		d.halt(err)
		return fmt.Errorf("%w: %w", ErrPresentationHalted, err)
	}
	return err
}

func (d *Display) halt(err error) {
	d.haltErr = err
	slogger().Error("scanout: presentation halted", "path", d.Path().String(), "err", err)
}

// bander returns the conversion pool, or nil for serial conversion.
func (d *Display) bander() convert.Bander {
	if d.workers == nil {
		return nil
	}
	return d.workers
}

func (d *Display) presentErr(path PathKind, op string, err error) *PresentError {
	return &PresentError{Path: path, Frame: d.frame, Op: op, Err: err}
}

// Close releases the path, the buffer pool and the display device. The
// compute context passed with WithGPU stays open. Calling Close again is a
// no-op.
func (d *Display) Close() error {
	if d == nil || d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if d.path != nil {
		errs = append(errs, d.path.release(d))
	}
	errs = append(errs, d.mgr.Close())
	if d.workers != nil {
		d.workers.Close()
	}
	slogger().Info("scanout: display closed",
		"frames", d.stats.Frames,
		"dropped", d.stats.Dropped,
		"path", d.Path().String())
	return errors.Join(errs...)
}
