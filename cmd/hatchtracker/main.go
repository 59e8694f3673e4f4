package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/team997coders/hatchtracker/internal/command"
	"github.com/team997coders/hatchtracker/internal/config"
	"github.com/team997coders/hatchtracker/internal/debug"
	"github.com/team997coders/hatchtracker/internal/hw/gpio"
	"github.com/team997coders/hatchtracker/internal/hw/indicator"
	"github.com/team997coders/hatchtracker/internal/hw/mount"
	"github.com/team997coders/hatchtracker/internal/logic/control"
	"github.com/team997coders/hatchtracker/internal/logic/geometry"
	"github.com/team997coders/hatchtracker/internal/logic/pipeline"
	"github.com/team997coders/hatchtracker/internal/snapshot"
	"github.com/team997coders/hatchtracker/internal/telemetry"
	"github.com/team997coders/hatchtracker/internal/vision"
	"github.com/team997coders/hatchtracker/internal/web"
)

// cliOverrides holds flag values that replace config file settings.
// Empty strings mean "use config".
type cliOverrides struct {
	Model string
	Mount string
	Input string
}

func main() {
	// CLI flags
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	model := flag.String("model", "", "override camera model (lifecam3000, lifecam5000, elp550)")
	mountTransport := flag.String("mount", "", "override mount transport (none, serial, socket)")
	input := flag.String("input", "", "override vision input (file path, - for stdin)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	overrides := cliOverrides{Model: *model, Mount: *mountTransport, Input: *input}
	if err := validateCLIOverrides(overrides); err != nil {
		log.Fatalf("invalid CLI override: %v", err)
	}
	applyOverrides(cfg, overrides)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Initialize debug system
	debug.Init(cfg.Defaults.DebugLevel)
	var logs *web.LogHub
	if webPort.port() > 0 {
		logs = web.NewLogHub()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.LogWriter(logs)))
	}
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	cal, err := calibrationFromConfig(cfg)
	if err != nil {
		log.Fatalf("camera calibration: %v", err)
	}
	debug.PrintStruct("Calibration", cal)

	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()
	lights, err := indicator.New(gpioDriver, indicator.Pins{
		RingLight: cfg.Indicator.RingLightPin,
		LockLED:   cfg.Indicator.LockLEDPin,
	})
	if err != nil {
		log.Fatalf("init indicator failed: %v", err)
	}
	if err := lights.Start(); err != nil {
		debug.Warn("ring light: %v", err)
	}
	defer lights.Stop()

	debug.Step(2, "Attaching pan/tilt mount")
	debug.PrintStruct("Mount config", cfg.Mount)
	panTilt := attachMount(ctx, cfg)
	defer panTilt.Close()

	table := telemetry.NewMemoryTable()
	pub := telemetry.NewPublisher(table)
	machine := control.NewMachine(panTilt, pub, control.Config{
		RetryBudget:   cfg.Control.RetryBudget,
		LockThreshold: cfg.Control.LockThreshold,
		Gains:         cfg.Control.PID,
		Signs:         cfg.Control.Signs,
	})
	machine.Observe(lights.OnTransition)
	debug.PrintStruct("Control config", cfg.Control)

	debug.Step(3, "Opening command socket")
	commands := &command.Mailbox{}
	if cfg.CommandsEnabled() {
		ln, err := command.Listen(cfg.Commands.Listen, commands)
		if err != nil {
			log.Fatalf("command socket: %v", err)
		}
		defer ln.Close()
		go func() {
			if err := ln.Serve(ctx); err != nil {
				debug.Error(err)
			}
		}()
	} else {
		debug.Info("Command socket disabled")
	}

	debug.Step(4, "Opening snapshot store")
	var snapshots web.SnapshotLister
	var store *snapshot.Store
	if cfg.Snapshots.Path != "" {
		store, err = snapshot.Open(cfg.Snapshots.Path)
		if err != nil {
			log.Fatalf("snapshot store: %v", err)
		}
		defer store.Close()
		snapshots = store
	} else {
		debug.Info("Snapshots disabled")
	}

	debug.Step(5, "Opening vision input")
	debug.Value("Vision input", cfg.Vision.Input)
	src, err := vision.Open(cfg.Vision.Input)
	if err != nil {
		log.Fatalf("vision input: %v", err)
	}
	defer src.Close()

	runner := pipeline.NewRunner(src, pipeline.NewWorker(cal), machine, pub, commands)
	if store != nil {
		runner.SetRecorder(store)
	}

	if port := webPort.port(); port > 0 {
		srv := web.NewServer(fmt.Sprintf(":%d", port), logs, table, snapshots)
		go func() {
			if err := srv.Run(ctx); err != nil {
				debug.Error(fmt.Errorf("web server: %w", err))
			}
		}()
	}

	debug.Section("Tracking")
	start := time.Now()
	if err := runner.Run(ctx); err != nil {
		log.Fatalf("frame loop: %v", err)
	}
	debug.Summary(fmt.Sprintf("%d frames in %s, final state %s", runner.Frames(), time.Since(start).Round(time.Millisecond), machine.State()))
}

// calibrationFromConfig selects the camera constants and applies a custom
// resolution when one is configured.
func calibrationFromConfig(cfg *config.Config) (geometry.Calibration, error) {
	m, err := geometry.ParseCameraModel(cfg.Camera.Model)
	if err != nil {
		return geometry.Calibration{}, err
	}
	cal, err := geometry.CalibrationFor(m)
	if err != nil {
		return geometry.Calibration{}, err
	}
	if cfg.Camera.WidthPx > 0 && cfg.Camera.HeightPx > 0 {
		cal = cal.WithResolution(cfg.Camera.WidthPx, cfg.Camera.HeightPx)
	}
	return cal, cal.Validate()
}

// attachMount connects the configured transport. Any failure leaves a mount
// with no transport, which the machine treats as vision-only.
func attachMount(ctx context.Context, cfg *config.Config) *mount.Mount {
	switch cfg.Mount.Transport {
	case config.TransportSocket:
		dialCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout())
		defer cancel()
		link, err := mount.DialSocket(dialCtx, cfg.Mount.Address)
		if err != nil {
			debug.Warn("mount socket: %v", err)
			return mount.New(nil)
		}
		return handshake(link, cfg.Mount.Address, cfg.ReadTimeout())

	case config.TransportSerial:
		if cfg.Mount.Port != "" {
			link, err := mount.OpenSerial(cfg.Mount.Port, cfg.Mount.Baud)
			if err != nil {
				debug.Warn("mount serial port: %v", err)
				return mount.New(nil)
			}
			return handshake(link, cfg.Mount.Port, cfg.ReadTimeout())
		}
		m, name, err := mount.NewFinder(cfg.Mount.Baud).Find()
		if err != nil {
			debug.Warn("mount scan: %v", err)
			return mount.New(nil)
		}
		m.SetReadTimeout(cfg.ReadTimeout())
		debug.Value("Mount port", name)
		return m

	default:
		debug.Info("Mount disabled, running vision-only")
		return mount.New(nil)
	}
}

func handshake(link mount.Transport, where string, timeout time.Duration) *mount.Mount {
	m := mount.New(link)
	m.SetReadTimeout(timeout)
	if err := m.Handshake(); err != nil {
		debug.Warn("no mount answering on %s: %v", where, err)
		m.Close()
		return mount.New(nil)
	}
	debug.Info("Pan/tilt mount attached on %s", where)
	return m
}

// validateCLIOverrides checks that non-empty CLI overrides name something
// that exists. Empty values are ignored (they mean "use config").
func validateCLIOverrides(o cliOverrides) error {
	if o.Model != "" {
		if _, err := geometry.ParseCameraModel(o.Model); err != nil {
			return fmt.Errorf("model: %w", err)
		}
	}
	switch o.Mount {
	case "", config.TransportNone, config.TransportSerial, config.TransportSocket:
	default:
		return fmt.Errorf("mount must be none, serial or socket, got %q", o.Mount)
	}
	return nil
}

// applyOverrides mutates cfg with overrides. Only non-empty values apply.
func applyOverrides(cfg *config.Config, o cliOverrides) {
	if o.Model != "" {
		cfg.Camera.Model = o.Model
	}
	if o.Mount != "" {
		cfg.Mount.Transport = o.Mount
	}
	if o.Input != "" {
		cfg.Vision.Input = o.Input
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
