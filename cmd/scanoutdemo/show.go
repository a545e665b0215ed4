// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	errorsGo "github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"github.com/gogpu/scanout"
)

func init() { rootCmd.AddCommand(showCmd) }

var (
	showFrames int
	showFPS    int
)

var showCmd = &cobra.Command{
	Use:   "show [image]",
	Short: "present an image, or the test pattern without one",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(func() error { return show(args) })
	},
}

func init() {
	showCmd.Flags().IntVarP(&showFrames, "frames", "n", 300, "frames to present, 0 runs until interrupted")
	showCmd.Flags().IntVar(&showFPS, "fps", 60, "presentation rate")
}

func show(args []string) error {
	opts := []scanout.Option{scanout.WithDevicePath(deviceFlag)}
	var frame scanout.Frame
	if len(args) == 1 {
		img, err := loadImage(args[0])
		if err != nil {
			return err
		}
		frame = scanout.CPUFrame(img.Pix, img.Rect.Dx(), img.Rect.Dy(), img.Stride)
	} else {
		opts = append(opts, scanout.WithTestPattern(true))
	}
	if showFPS <= 0 {
		return errorsGo.Errorf("invalid --fps %d", showFPS)
	}

	d, err := scanout.OpenDisplay(opts...)
	if err != nil {
		return errorsGo.Wrap(err, 0)
	}
	defer d.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	provider := scanout.FrameProviderFunc(func() (scanout.Frame, error) { return frame, nil })
	ticker := time.NewTicker(time.Second / time.Duration(showFPS))
	defer ticker.Stop()

	for n := 0; showFrames == 0 || n < showFrames; n++ {
		if err := d.PresentNext(provider); err != nil && scanout.IsFatal(err) {
			return errorsGo.Wrap(err, 0)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
	return nil
}

// loadImage decodes path into tightly packed RGBA.
func loadImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path) // #nosec G304 -- user-supplied image path
	if err != nil {
		return nil, errorsGo.Wrap(err, 0)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, errorsGo.WrapPrefix(err, path, 0)
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, src, b.Min, draw.Src)
	return dst, nil
}
