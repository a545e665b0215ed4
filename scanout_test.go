// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package scanout

import (
	"encoding/binary"
	"errors"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/scanout/compute"
	"github.com/gogpu/scanout/display"
	"github.com/gogpu/scanout/internal/convert"
	"github.com/gogpu/scanout/kms"
	"github.com/gogpu/scanout/kms/kmstest"
)

// openTest opens a session on dev with the environment diagnostics
// overridden.
func openTest(t *testing.T, dev *kmstest.Device, opts ...Option) *Display {
	t.Helper()
	base := []Option{
		WithDevice(dev),
		WithTestPattern(false),
		WithForceFlush(false),
		WithVBlankSync(true),
		WithPlanePreference(display.PreferPrimary),
	}
	d, err := OpenDisplay(append(base, opts...)...)
	if err != nil {
		t.Fatalf("OpenDisplay: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func openGPU(t *testing.T, opts ...compute.Option) *compute.Context {
	t.Helper()
	c, err := compute.Open(append([]compute.Option{compute.WithBackend(noop.API{})}, opts...)...)
	if err != nil {
		t.Fatalf("compute.Open: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func gpuFrame(t *testing.T, c *compute.Context, w, h int) Frame {
	t.Helper()
	tex, err := c.Device().CreateTexture(&hal.TextureDescriptor{
		Label:         "test_frame",
		Size:          hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	return GPUFrame(tex, w, h, gputypes.TextureFormatRGBA8Unorm)
}

// rgb returns a distinct colour per pixel.
func rgb(x, y int) (r, g, b uint8) {
	return uint8(x*7 + y), uint8(y*5 + 3), uint8(x ^ y) // #nosec G115
}

func cpuFrame(w, h int) Frame {
	stride := w*4 + 8
	pix := make([]byte, stride*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b := rgb(x, y)
			copy(pix[y*stride+x*4:], []byte{r, g, b, uint8(x + y)}) // #nosec G115
		}
	}
	return CPUFrame(pix, w, h, stride)
}

// dmabufImporter imports by allocating a plain storage buffer and closing
// the descriptor.
type dmabufImporter struct {
	device hal.Device
	calls  int
	err    error
}

func (i *dmabufImporter) ImportDmaBuf(desc compute.DmaBuf) (hal.Buffer, error) {
	i.calls++
	if i.err != nil {
		return nil, i.err
	}
	_ = unix.Close(desc.FD)
	return i.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "test_dmabuf",
		Size:  desc.Size,
		Usage: gputypes.BufferUsageStorage,
	})
}

func zeroCopyGPU(t *testing.T) (*compute.Context, *dmabufImporter) {
	t.Helper()
	imp := &dmabufImporter{}
	c := openGPU(t, compute.WithImporter(imp))
	imp.device = c.Device()
	return c, imp
}

func TestOpenDisplay(t *testing.T) {
	dev := kmstest.New()
	d := openTest(t, dev)

	m := d.Mode()
	if m.Width != 1280 || m.Height != 720 {
		t.Errorf("Mode() = %v, want 1280x720", m)
	}
	if d.Path() != PathNone {
		t.Errorf("Path() = %v before the first frame", d.Path())
	}
	if s := d.Stats(); s.Reallocs != 0 || s.Frames != 0 {
		t.Errorf("fresh Stats() = %+v", s)
	}
}

func TestOpenDisplayInitErrors(t *testing.T) {
	tests := []struct {
		name string
		opt  kmstest.Option
		want error
	}{
		{"disconnected", kmstest.WithDisconnected(), display.ErrNoConnector},
		{"no crtc", kmstest.WithoutCRTC(), display.ErrNoPipeline},
		{"no dumb buffers", kmstest.WithoutDumbBuffers(), display.ErrNoDevice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := kmstest.New(tt.opt)
			d, err := OpenDisplay(WithDevice(dev))
			if err == nil {
				_ = d.Close()
				t.Fatal("OpenDisplay succeeded")
			}
			var ie *InitError
			if !errors.As(err, &ie) {
				t.Fatalf("error %T is not *InitError", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
			if !IsFatal(err) {
				t.Error("InitError is not fatal")
			}
		})
	}
}

func TestOpenDisplayEveryMode(t *testing.T) {
	modes := []kms.ModeInfo{
		kmstest.Mode(640, 480, 60, false),
		kmstest.Mode(720, 720, 60, false),
		kmstest.Mode(1920, 1080, 50, false),
		kmstest.Mode(0, 0, 0, false),
	}
	for _, mode := range modes {
		dev := kmstest.New(kmstest.WithModes(mode))
		d, err := OpenDisplay(WithDevice(dev))
		if err != nil {
			if !errors.As(err, new(*InitError)) {
				t.Errorf("mode %v: error %v is not an InitError", mode, err)
			}
			continue
		}
		got := d.Mode()
		if got.Width == 0 || got.Height == 0 {
			t.Errorf("mode %v: zero-sized success %v", mode, got)
		}
		if got.Width != uint32(mode.Hdisplay) || got.Height != uint32(mode.Vdisplay) {
			t.Errorf("mode %v: got %v", mode, got)
		}
		_ = d.Close()
	}
}

func TestCloseIdempotent(t *testing.T) {
	dev := kmstest.New()
	d, err := OpenDisplay(WithDevice(dev))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.PresentFrame(cpuFrame(64, 48)); err != nil {
		t.Fatal(err)
	}

	if err := d.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if !dev.Closed() || dev.Calls().Close != 1 {
		t.Errorf("device closed %v after %d Close calls", dev.Closed(), dev.Calls().Close)
	}
	if n := dev.LiveDumbs(); n != 0 {
		t.Errorf("%d dumb buffers leaked", n)
	}
	if n := dev.LiveFBs(); n != 0 {
		t.Errorf("%d framebuffers leaked", n)
	}
	if n := dev.LiveMappings(); n != 0 {
		t.Errorf("%d mappings leaked", n)
	}
	if err := d.PresentFrame(cpuFrame(64, 48)); !errors.Is(err, ErrDisplayClosed) {
		t.Errorf("PresentFrame after Close = %v, want ErrDisplayClosed", err)
	}

	var nilDisplay *Display
	if err := nilDisplay.Close(); err != nil {
		t.Errorf("nil Close = %v", err)
	}
}

func TestPresentRoundTrip(t *testing.T) {
	formats := []struct {
		name  string
		fault func(*kmstest.Faults)
		want  uint32
	}{
		{"legacy", nil, kms.FormatXRGB8888},
		{"addfb2", func(f *kmstest.Faults) { f.AddFB = unix.EINVAL }, kms.FormatXBGR8888},
	}
	for _, tt := range formats {
		t.Run(tt.name, func(t *testing.T) {
			dev := kmstest.New(kmstest.WithModes(kmstest.Mode(320, 240, 60, true)))
			d := openTest(t, dev)
			if tt.fault != nil {
				dev.Inject(tt.fault)
			}

			if err := d.PresentFrame(cpuFrame(320, 240)); err != nil {
				t.Fatalf("PresentFrame: %v", err)
			}
			fb, pixels, ok := dev.Scanout()
			if !ok {
				t.Fatal("nothing scanned out")
			}
			if fb.Format != tt.want {
				t.Fatalf("format = %s, want %s", kms.FormatName(fb.Format), kms.FormatName(tt.want))
			}

			xrgb := fb.Format == kms.FormatXRGB8888
			for y := 0; y < 240; y++ {
				for x := 0; x < 320; x++ {
					off := y*int(fb.Pitch) + x*4
					if pixels[off+3] != 0 {
						t.Fatalf("(%d,%d) fourth byte = %#x, alpha not discarded", x, y, pixels[off+3])
					}
					r, g, b := convert.Unpack(binary.LittleEndian.Uint32(pixels[off:]), xrgb)
					wr, wg, wb := rgb(x, y)
					if r != wr || g != wg || b != wb {
						t.Fatalf("(%d,%d) = %d,%d,%d want %d,%d,%d", x, y, r, g, b, wr, wg, wb)
					}
				}
			}
		})
	}
}

func TestPresentScalesToDisplayResolution(t *testing.T) {
	dev := kmstest.New()
	d := openTest(t, dev)

	if err := d.PresentFrame(cpuFrame(320, 240)); err != nil {
		t.Fatal(err)
	}
	fb, _, ok := dev.Scanout()
	if !ok || fb.Width != 1280 || fb.Height != 720 {
		t.Errorf("scanout fb = %dx%d, want display resolution 1280x720", fb.Width, fb.Height)
	}
}

func TestEmptyFrameSkipped(t *testing.T) {
	dev := kmstest.New()
	d := openTest(t, dev)
	before := dev.Calls()

	for _, f := range []Frame{{}, CPUFrame(nil, 0, 240, 0), CPUFrame(nil, 320, 0, 1280)} {
		if err := d.PresentFrame(f); err != nil {
			t.Errorf("PresentFrame(%dx%d) = %v", f.Width, f.Height, err)
		}
	}
	after := dev.Calls()
	if after.SetCrtc != before.SetCrtc || after.PageFlip != before.PageFlip || after.CreateDumb != before.CreateDumb {
		t.Error("an empty frame touched the display")
	}
	if s := d.Stats(); s.Skipped != 3 || s.Frames != 0 || s.Path != PathNone {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestInvalidFrame(t *testing.T) {
	dev := kmstest.New()
	d := openTest(t, dev)

	tests := []struct {
		name  string
		frame Frame
	}{
		{"short stride", CPUFrame(make([]byte, 64*4*4), 64, 4, 64*4-1)},
		{"short pixels", CPUFrame(make([]byte, 64*4*3), 64, 4, 64*4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.PresentFrame(tt.frame)
			var pe *PresentError
			if !errors.As(err, &pe) || !errors.Is(err, ErrInvalidFrame) {
				t.Fatalf("PresentFrame = %v, want PresentError wrapping ErrInvalidFrame", err)
			}
			if IsFatal(err) {
				t.Error("invalid frame reported as fatal")
			}
		})
	}
	if n := dev.Calls().CreateDumb; n != 1 {
		t.Errorf("CreateDumb calls = %d, want only the mode buffer", n)
	}
}

func TestReallocationOnResolutionChange(t *testing.T) {
	dev := kmstest.New()
	d := openTest(t, dev)

	small, large := cpuFrame(320, 240), cpuFrame(640, 480)
	prev := 0
	changes := 0
	for i := 0; i < 120; i++ {
		f, w := small, 320
		if (i/10)%2 == 1 {
			f, w = large, 640
		}
		before := d.Stats().Reallocs
		if err := d.PresentFrame(f); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		realloc := d.Stats().Reallocs - before

		changed := w != prev
		prev = w
		if changed {
			changes++
		}
		if changed && realloc != 1 {
			t.Errorf("frame %d: resolution changed but pool reallocated %d times", i, realloc)
		}
		if !changed && realloc != 0 {
			t.Errorf("frame %d: pool reallocated without a resolution change", i)
		}
	}

	s := d.Stats()
	if s.Reallocs != changes || changes != 12 {
		t.Errorf("reallocations = %d, changes = %d, want 12", s.Reallocs, changes)
	}
	if s.Frames != 120 || s.Dropped != 0 || s.FlipFails != 0 || s.Retries != 0 {
		t.Errorf("frames = %d, dropped = %d, flip failures = %d, retries = %d", s.Frames, s.Dropped, s.FlipFails, s.Retries)
	}
	if n := dev.LiveDumbs(); n != 1+display.PoolSize {
		t.Errorf("live dumb buffers = %d, want %d", n, 1+display.PoolSize)
	}
}

func TestBusyFlipRetried(t *testing.T) {
	dev := kmstest.New()
	d := openTest(t, dev)
	f := cpuFrame(320, 240)

	if err := d.PresentFrame(f); err != nil {
		t.Fatal(err)
	}
	dev.Inject(func(f *kmstest.Faults) { f.BusyFlips = 1 })
	before := dev.Calls()

	if err := d.PresentFrame(f); err != nil {
		t.Fatalf("PresentFrame with busy flip: %v", err)
	}
	after := dev.Calls()
	if n := after.WaitVBlank - before.WaitVBlank; n != 1 {
		t.Errorf("vblank waits = %d, want 1", n)
	}
	if n := after.PageFlip - before.PageFlip; n != 2 {
		t.Errorf("page flips = %d, want 2", n)
	}
	s := d.Stats()
	if s.Retries != 1 || s.Dropped != 0 || s.Frames != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestCPUPathHaltsAfterThreeFailures(t *testing.T) {
	dev := kmstest.New()
	d := openTest(t, dev)
	f := cpuFrame(320, 240)

	if err := d.PresentFrame(f); err != nil {
		t.Fatal(err)
	}
	dev.Inject(func(f *kmstest.Faults) { f.PageFlip = unix.EIO })

	for i := 1; i <= 3; i++ {
		err := d.PresentFrame(f)
		if !errors.Is(err, unix.EIO) {
			t.Fatalf("failure %d: %v, want EIO", i, err)
		}
		if fatal := IsFatal(err); fatal != (i == 3) {
			t.Errorf("failure %d: IsFatal = %v", i, fatal)
		}
	}

	dev.Inject(func(f *kmstest.Faults) { f.PageFlip = nil })
	flips := dev.Calls().PageFlip
	if err := d.PresentFrame(f); !errors.Is(err, ErrPresentationHalted) {
		t.Errorf("PresentFrame after halt = %v, want ErrPresentationHalted", err)
	}
	if dev.Calls().PageFlip != flips {
		t.Error("halted session touched the display")
	}
	if s := d.Stats(); !s.Halted || s.Dropped != 3 || s.Frames != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestFailureCounterResets(t *testing.T) {
	dev := kmstest.New()
	d := openTest(t, dev)
	f := cpuFrame(320, 240)
	if err := d.PresentFrame(f); err != nil {
		t.Fatal(err)
	}

	for round := 0; round < 3; round++ {
		dev.Inject(func(f *kmstest.Faults) { f.PageFlip = unix.EIO })
		for i := 0; i < 2; i++ {
			if err := d.PresentFrame(f); err == nil || IsFatal(err) {
				t.Fatalf("round %d: %v", round, err)
			}
		}
		dev.Inject(func(f *kmstest.Faults) { f.PageFlip = nil })
		if err := d.PresentFrame(f); err != nil {
			t.Fatalf("round %d recovery: %v", round, err)
		}
	}
	if s := d.Stats(); s.Halted || s.Failures != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestCPUAllocationFailureIsFatal(t *testing.T) {
	dev := kmstest.New()
	d := openTest(t, dev)
	dev.Inject(func(f *kmstest.Faults) { f.CreateDumb = unix.ENOMEM })

	err := d.PresentFrame(cpuFrame(320, 240))
	var ae *AllocError
	if !errors.As(err, &ae) || ae.Path != PathCPU || !ae.Fatal {
		t.Fatalf("PresentFrame = %v, want fatal cpu AllocError", err)
	}
	if !IsFatal(err) || !errors.Is(err, unix.ENOMEM) {
		t.Errorf("error %v: fatal %v", err, IsFatal(err))
	}

	dev.Inject(func(f *kmstest.Faults) { f.CreateDumb = nil })
	if err := d.PresentFrame(cpuFrame(320, 240)); !errors.Is(err, ErrPresentationHalted) {
		t.Errorf("PresentFrame after allocation failure = %v", err)
	}
}

func TestZeroCopySetupFailureDegrades(t *testing.T) {
	imp := &dmabufImporter{err: errors.New("VK_ERROR_INVALID_EXTERNAL_HANDLE")}
	gpu := openGPU(t, compute.WithImporter(imp))
	dev := kmstest.New()
	d := openTest(t, dev, WithGPU(gpu))

	for i := 0; i < 10; i++ {
		if err := d.PresentFrame(gpuFrame(t, gpu, 320, 240)); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
		if d.Path() != PathCPU {
			t.Fatalf("frame %d: path = %v, want cpu", i, d.Path())
		}
	}

	if imp.calls != 1 {
		t.Errorf("import attempted %d times, want 1", imp.calls)
	}
	if n := dev.Calls().Prime; n != 1 {
		t.Errorf("prime exports = %d, want 1", n)
	}
	s := d.Stats()
	if !s.ZeroCopyDisabled || s.Frames != 10 || s.Dropped != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestZeroCopyUnsupportedDevice(t *testing.T) {
	gpu := openGPU(t)
	dev := kmstest.New()
	d := openTest(t, dev, WithGPU(gpu))

	if err := d.PresentFrame(gpuFrame(t, gpu, 640, 480)); err != nil {
		t.Fatal(err)
	}
	if d.Path() != PathCPU || !d.Stats().ZeroCopyDisabled {
		t.Errorf("path = %v, stats = %+v", d.Path(), d.Stats())
	}
	if n := dev.Calls().Prime; n != 0 {
		t.Errorf("prime exports = %d without import support", n)
	}
}

func TestZeroCopyDisabledByOption(t *testing.T) {
	gpu, imp := zeroCopyGPU(t)
	d := openTest(t, kmstest.New(), WithGPU(gpu), WithZeroCopy(false))

	if err := d.PresentFrame(gpuFrame(t, gpu, 320, 240)); err != nil {
		t.Fatal(err)
	}
	if d.Path() != PathCPU || imp.calls != 0 {
		t.Errorf("path = %v, imports = %d", d.Path(), imp.calls)
	}
}

func TestZeroCopyPresents(t *testing.T) {
	gpu, imp := zeroCopyGPU(t)
	dev := kmstest.New()
	d := openTest(t, dev, WithGPU(gpu))

	for i := 0; i < 5; i++ {
		w := 320
		if i%2 == 1 {
			w = 640
		}
		if err := d.PresentFrame(gpuFrame(t, gpu, w, w*3/4)); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
	if d.Path() != PathZeroCopy {
		t.Fatalf("path = %v, want zero-copy", d.Path())
	}
	if imp.calls != display.PoolSize {
		t.Errorf("imports = %d, want %d", imp.calls, display.PoolSize)
	}
	s := d.Stats()
	if s.Reallocs != 1 || s.Frames != 5 {
		t.Errorf("Stats() = %+v, want one allocation and five frames", s)
	}
	calls := dev.Calls()
	if calls.SetCrtc != 2 || calls.PageFlip != 4 {
		t.Errorf("SetCrtc = %d, PageFlip = %d, want 2 and 4", calls.SetCrtc, calls.PageFlip)
	}
	fb, _, _ := dev.Scanout()
	if fb.Width != 1280 || fb.Height != 720 {
		t.Errorf("scanout fb = %dx%d", fb.Width, fb.Height)
	}
}

func TestZeroCopyDegradesAfterThreeFailures(t *testing.T) {
	gpu, imp := zeroCopyGPU(t)
	dev := kmstest.New()
	d := openTest(t, dev, WithGPU(gpu))

	if err := d.PresentFrame(gpuFrame(t, gpu, 320, 240)); err != nil {
		t.Fatal(err)
	}
	dev.Inject(func(f *kmstest.Faults) { f.PageFlip = unix.EIO })
	for i := 1; i <= 3; i++ {
		err := d.PresentFrame(gpuFrame(t, gpu, 320, 240))
		var pe *PresentError
		if !errors.As(err, &pe) || pe.Path != PathZeroCopy {
			t.Fatalf("failure %d: %v, want zero-copy PresentError", i, err)
		}
		if IsFatal(err) {
			t.Fatalf("failure %d reported as fatal", i)
		}
	}
	if d.Path() != PathCPU {
		t.Fatalf("path after three failures = %v, want cpu", d.Path())
	}

	dev.Inject(func(f *kmstest.Faults) { f.PageFlip = nil })
	for i := 0; i < 3; i++ {
		if err := d.PresentFrame(gpuFrame(t, gpu, 320, 240)); err != nil {
			t.Fatalf("cpu frame %d: %v", i, err)
		}
	}
	if d.Path() != PathCPU {
		t.Error("zero-copy re-entered")
	}
	if imp.calls != display.PoolSize {
		t.Errorf("imports = %d, want %d", imp.calls, display.PoolSize)
	}
	s := d.Stats()
	if s.Degraded != 1 || !s.ZeroCopyDisabled || s.Reallocs != 2 || s.Frames != 4 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestCPUFrameOnZeroCopyPath(t *testing.T) {
	gpu, _ := zeroCopyGPU(t)
	d := openTest(t, kmstest.New(), WithGPU(gpu))

	if err := d.PresentFrame(gpuFrame(t, gpu, 320, 240)); err != nil {
		t.Fatal(err)
	}
	err := d.PresentFrame(cpuFrame(320, 240))
	if !errors.Is(err, ErrUnsupportedFrame) {
		t.Fatalf("CPU frame on zero-copy path = %v", err)
	}
	if s := d.Stats(); s.Failures != 0 || s.Path != PathZeroCopy {
		t.Errorf("unsupported frame counted as path failure: %+v", s)
	}
}

func TestGPUFrameWithoutContext(t *testing.T) {
	gpu := openGPU(t)
	d := openTest(t, kmstest.New())

	err := d.PresentFrame(gpuFrame(t, gpu, 320, 240))
	if !errors.Is(err, ErrUnsupportedFrame) {
		t.Fatalf("PresentFrame = %v, want ErrUnsupportedFrame", err)
	}
	if d.Path() != PathNone {
		t.Errorf("path resolved from an unusable frame: %v", d.Path())
	}
}

func TestPresentNext(t *testing.T) {
	dev := kmstest.New()
	d := openTest(t, dev)
	errRenderer := errors.New("renderer lost")

	none := FrameProviderFunc(func() (Frame, error) { return Frame{}, ErrNoFrameAvailable })
	if err := d.PresentNext(none); err != nil {
		t.Fatalf("PresentNext without frame = %v", err)
	}
	if s := d.Stats(); s.Skipped != 1 || dev.Calls().CreateDumb != 1 {
		t.Errorf("skipped tick touched the display: %+v", s)
	}

	broken := FrameProviderFunc(func() (Frame, error) { return Frame{}, errRenderer })
	if err := d.PresentNext(broken); !errors.Is(err, errRenderer) {
		t.Errorf("PresentNext with failing provider = %v", err)
	}

	ok := FrameProviderFunc(func() (Frame, error) { return cpuFrame(320, 240), nil })
	if err := d.PresentNext(ok); err != nil {
		t.Fatalf("PresentNext = %v", err)
	}
	if s := d.Stats(); s.Frames != 1 {
		t.Errorf("frames = %d, want 1", s.Frames)
	}
}

func TestTestPattern(t *testing.T) {
	dev := kmstest.New()
	d := openTest(t, dev, WithTestPattern(true))

	never := FrameProviderFunc(func() (Frame, error) {
		t.Fatal("frame source consulted in test pattern mode")
		return Frame{}, nil
	})
	if err := d.PresentNext(never); err != nil {
		t.Fatal(err)
	}

	fb, pixels, ok := dev.Scanout()
	if !ok {
		t.Fatal("nothing scanned out")
	}
	xrgb := fb.Format == kms.FormatXRGB8888
	pixel := func(x, y int) (r, g, b uint8) {
		return convert.Unpack(binary.LittleEndian.Uint32(pixels[y*int(fb.Pitch)+x*4:]), xrgb)
	}
	if r, g, b := pixel(0, 0); r != 0xFF || g != 0 || b != 0 {
		t.Errorf("border pixel = %d,%d,%d, want red", r, g, b)
	}
	if r, g, b := pixel(65, 40); r != 65 || g != 80 || b != 65^40 {
		t.Errorf("ramp pixel = %d,%d,%d, want 65,80,%d", r, g, b, 65^40)
	}
	if r, g, b := pixel(64, 40); r != 0xFF || g != 0xFF || b != 0xFF {
		t.Errorf("grid pixel = %d,%d,%d, want white", r, g, b)
	}
	if d.Path() != PathCPU {
		t.Errorf("path = %v, want cpu", d.Path())
	}
}

func TestForceFlush(t *testing.T) {
	dev := kmstest.New()
	d := openTest(t, dev, WithForceFlush(true))

	for i := 0; i < 3; i++ {
		if err := d.PresentFrame(cpuFrame(320, 240)); err != nil {
			t.Fatal(err)
		}
	}
	if n := dev.Calls().Msync; n != 3 {
		t.Errorf("msync calls = %d, want 3", n)
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"init", &InitError{Op: "open", Err: display.ErrNoDevice}, true},
		{"zero-copy alloc", &AllocError{Path: PathZeroCopy, Op: "import", Err: compute.ErrExternalMemoryUnsupported}, false},
		{"cpu alloc", &AllocError{Path: PathCPU, Op: "allocate", Err: unix.ENOMEM, Fatal: true}, true},
		{"present", &PresentError{Path: PathCPU, Op: "present", Err: unix.EIO}, false},
		{"halted", ErrPresentationHalted, true},
		{"wrapped init", errors.Join(errors.New("ctx"), &InitError{Op: "open", Err: unix.ENOENT}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFatal(tt.err); got != tt.want {
				t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestPathKindString(t *testing.T) {
	tests := []struct {
		k    PathKind
		want string
	}{
		{PathNone, "none"},
		{PathZeroCopy, "zero-copy"},
		{PathCPU, "cpu"},
		{PathKind(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.k.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.k, got, tt.want)
		}
	}
}

func TestConvertWorkersSameOutput(t *testing.T) {
	var scans [][]byte
	for _, workers := range []int{1, 4} {
		dev := kmstest.New()
		d := openTest(t, dev, WithConvertWorkers(workers))
		if err := d.PresentFrame(cpuFrame(123, 77)); err != nil {
			t.Fatalf("workers %d: %v", workers, err)
		}
		_, pixels, ok := dev.Scanout()
		if !ok {
			t.Fatalf("workers %d: nothing scanned out", workers)
		}
		scans = append(scans, pixels)
	}
	if string(scans[0]) != string(scans[1]) {
		t.Error("banded conversion differs from serial conversion")
	}
}
