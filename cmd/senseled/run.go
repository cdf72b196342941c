package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"senseled/internal/anim"
	"senseled/internal/config"
	"senseled/internal/device"
	"senseled/internal/display"
	"senseled/internal/frame"
	appLog "senseled/internal/log"
	"senseled/internal/player"
	"senseled/internal/scheduler"
	"senseled/internal/web"
)

const (
	modeBitmap  = "bitmap"
	modeAnimate = "animate"
	modeFill    = "fill"
	modeImage   = "image"
	modeClear   = "clear"
	modeServe   = "serve"
)

// run executes one mode against tr. The display is dark when it returns.
func run(ctx context.Context, conf *config.Config, flags flagConfig, tr device.Transport) error {
	enc, err := conf.Encoder()
	if err != nil {
		return err
	}
	m := display.New(tr, enc)
	p := player.New(anim.NewDriver(enc), m, scheduler.Ticker{}, conf.Period(), conf.Animation.Ticks)

	switch flags.mode {
	case modeBitmap:
		g, err := conf.BitmapGrid()
		if err != nil {
			return err
		}
		return player.Hold(ctx, m, g, conf.Hold())

	case modeAnimate:
		_, err := p.Play(ctx)
		return err

	case modeFill:
		c, err := frame.ParseColor(conf.Bitmap.Color, enc.Depth)
		if err != nil {
			return err
		}
		var g frame.Grid
		g.Fill(c)
		return player.Hold(ctx, m, g, conf.Hold())

	case modeImage:
		g, err := loadImage(flags.image, enc.Depth)
		if err != nil {
			return err
		}
		return player.Hold(ctx, m, g, conf.Hold())

	case modeClear:
		return m.Clear()

	case modeServe:
		return serve(ctx, conf, m, p)

	default:
		return fmt.Errorf("unknown mode %q", flags.mode)
	}
}

// serve runs the web editor and, when a schedule is configured, starts an
// animation session on every cron tick.
func serve(ctx context.Context, conf *config.Config, m *display.Matrix, p *player.Player) error {
	// A listen failure must also stop the cron loop.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := web.NewServer(ctx, conf, m, p)

	cronDone := make(chan struct{})
	if conf.Schedule != "" {
		c := scheduler.NewCron()
		err := c.Add(conf.Schedule, func() {
			if _, err := p.Play(ctx); err != nil {
				if errors.Is(err, player.ErrBusy) {
					appLog.Info("scheduled session skipped; another session is running")
					return
				}
				appLog.Error("scheduled session failed", err)
			}
		})
		if err != nil {
			return err
		}
		appLog.Info("scheduled animation enabled", "schedule", conf.Schedule)
		go func() {
			defer close(cronDone)
			c.Run(ctx)
		}()
	} else {
		close(cronDone)
	}

	err := srv.Run(ctx)
	cancel()
	<-cronDone

	if cerr := m.Clear(); cerr != nil {
		err = errors.Join(err, fmt.Errorf("final clear: %w", cerr))
	}
	return err
}

// loadImage decodes path and samples it down to the matrix.
func loadImage(path string, d frame.Depth) (frame.Grid, error) {
	if path == "" {
		return frame.Grid{}, errors.New("-image is required for mode image")
	}
	f, err := os.Open(path)
	if err != nil {
		return frame.Grid{}, err
	}
	defer f.Close()

	img, format, err := image.Decode(f)
	if err != nil {
		return frame.Grid{}, fmt.Errorf("decode %s: %w", path, err)
	}
	appLog.Debug("image loaded", "path", path, "format", format, "bounds", img.Bounds().String())
	return frame.FromImage(img, d), nil
}
