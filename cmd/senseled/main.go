package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"senseled/internal/config"
	"senseled/internal/device"
	appLog "senseled/internal/log"
)

// flagConfig holds CLI flag values; non-zero values override the config file.
type flagConfig struct {
	configPath string
	mode       string
	ticks      int
	image      string
	color      string
	dryRun     bool
	listen     string
	debug      bool
}

func main() {
	appLog.Info("senseled starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	flags.apply(conf)

	level, _ := appLog.ParseLevel(conf.LogLevel)
	if flags.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	appLog.Info("effective config",
		"mode", flags.mode,
		"listen", conf.Listen,
		"bus", conf.Device.Bus,
		"address", conf.Device.Address,
		"layout", conf.Layout,
		"depth", conf.Depth,
		"period_ms", conf.Animation.PeriodMs,
		"ticks", conf.Animation.Ticks,
		"schedule", conf.Schedule,
		"dry_run", flags.dryRun,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	var tr device.Transport
	if flags.dryRun {
		tr = device.NewRecorder(0)
	} else {
		// A fallback recorder still lets serve mode run without hardware.
		tr, _ = device.Default(conf.DeviceOptions())
	}

	code := 0
	if err := run(ctx, conf, flags, tr); err != nil {
		appLog.Error("run failed", err, "mode", flags.mode)
		code = 1
	}

	if rec, ok := tr.(*device.Recorder); ok {
		appLog.Info("in-memory transport", "frames", rec.Len())
	}
	if c, ok := tr.(io.Closer); ok {
		if err := c.Close(); err != nil {
			appLog.Error("failed to close transport", err)
		}
	}

	appLog.Info("senseled exiting")
	os.Exit(code)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/senseled/config.yaml", "Path to config file")
	flag.StringVar(&cfg.mode, "mode", modeBitmap, "One of bitmap, animate, fill, image, clear, serve")
	flag.IntVar(&cfg.ticks, "ticks", 0, "Animation tick budget (overrides config if set)")
	flag.StringVar(&cfg.image, "image", "", "Image file shown by -mode image (PNG, JPEG or GIF)")
	flag.StringVar(&cfg.color, "color", "", "Colour as #rrggbb for -mode fill and bitmap (overrides config if set)")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "Do not touch the I2C bus; record frames in memory")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address for -mode serve (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}

// apply copies CLI overrides into conf.
func (f flagConfig) apply(conf *config.Config) {
	if f.listen != "" {
		conf.Listen = f.listen
	}
	if f.ticks > 0 {
		conf.Animation.Ticks = f.ticks
	}
	if f.color != "" {
		conf.Bitmap.Color = f.color
	}
}
