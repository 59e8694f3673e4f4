package main

import (
	"context"
	"net"
	"testing"

	"github.com/team997coders/hatchtracker/internal/config"
	"github.com/team997coders/hatchtracker/internal/logic/geometry"
)

// ---------- validateCLIOverrides ----------

func TestValidateCLIOverrides_AllEmpty(t *testing.T) {
	if err := validateCLIOverrides(cliOverrides{}); err != nil {
		t.Errorf("empty overrides should be valid (use config), got: %v", err)
	}
}

func TestValidateCLIOverrides_Valid(t *testing.T) {
	cases := []struct {
		name string
		o    cliOverrides
	}{
		{"model_lifecam3000", cliOverrides{Model: "lifecam3000"}},
		{"model_upper_case", cliOverrides{Model: "ELP550"}},
		{"mount_none", cliOverrides{Mount: "none"}},
		{"mount_serial", cliOverrides{Mount: "serial"}},
		{"mount_socket", cliOverrides{Mount: "socket"}},
		{"input_any_path", cliOverrides{Input: "frames.jsonl"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.o); err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
		})
	}
}

func TestValidateCLIOverrides_Invalid(t *testing.T) {
	cases := []struct {
		name string
		o    cliOverrides
	}{
		{"unknown_model", cliOverrides{Model: "gopro"}},
		{"unknown_mount", cliOverrides{Mount: "usb"}},
		{"mount_wrong_case", cliOverrides{Mount: "Serial"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateCLIOverrides(tc.o); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_ValidPorts(t *testing.T) {
	cases := []struct {
		input string
		want  int
	}{
		{"8080", 8080},
		{"1", 1},
		{"65535", 65535},
		{"5800", 5800},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(tc.input); err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want {
				t.Errorf("port() = %d, want %d", w.port(), tc.want)
			}
		})
	}
}

func TestWebPortFlag_InvalidPorts(t *testing.T) {
	cases := []string{"0", "65536", "-1", "abc", "8080.5"}
	for _, input := range cases {
		t.Run(input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			if err := w.Set(input); err == nil {
				t.Errorf("Set(%q) should fail, got nil", input)
			}
		})
	}
}

func TestWebPortFlag_String(t *testing.T) {
	w := &webPortFlag{val: 0}
	if s := w.String(); s != "0" {
		t.Errorf("String() = %q, want \"0\"", s)
	}
	w.val = 9090
	if s := w.String(); s != "9090" {
		t.Errorf("String() = %q, want \"9090\"", s)
	}
}

// ---------- applyOverrides ----------

func newTestConfig() *config.Config {
	return &config.Config{
		Camera: config.CameraConfig{Model: "lifecam5000"},
		Mount: config.MountConfig{
			Transport:     config.TransportSerial,
			Baud:          57600,
			ReadTimeoutMs: 100,
			DialTimeoutMs: 200,
		},
		Vision: config.VisionConfig{Input: "-"},
	}
}

func TestApplyOverrides_NonEmpty(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, cliOverrides{Model: "elp550", Mount: "none", Input: "run.jsonl"})
	if cfg.Camera.Model != "elp550" {
		t.Errorf("Camera.Model = %q, want elp550", cfg.Camera.Model)
	}
	if cfg.Mount.Transport != "none" {
		t.Errorf("Mount.Transport = %q, want none", cfg.Mount.Transport)
	}
	if cfg.Vision.Input != "run.jsonl" {
		t.Errorf("Vision.Input = %q, want run.jsonl", cfg.Vision.Input)
	}
}

func TestApplyOverrides_EmptyLeavesUnchanged(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, cliOverrides{})
	want := newTestConfig()
	if cfg.Camera != want.Camera || cfg.Mount != want.Mount || cfg.Vision != want.Vision {
		t.Errorf("empty overrides changed config: got %+v", cfg)
	}
}

func TestApplyOverrides_Partial(t *testing.T) {
	cfg := newTestConfig()
	applyOverrides(cfg, cliOverrides{Mount: "socket"})
	if cfg.Mount.Transport != "socket" {
		t.Errorf("Mount.Transport = %q, want socket", cfg.Mount.Transport)
	}
	if cfg.Camera.Model != "lifecam5000" || cfg.Vision.Input != "-" {
		t.Errorf("unrelated fields changed: %+v %+v", cfg.Camera, cfg.Vision)
	}
}

// ---------- calibrationFromConfig ----------

func TestCalibrationFromConfig_Default(t *testing.T) {
	cal, err := calibrationFromConfig(newTestConfig())
	if err != nil {
		t.Fatalf("calibrationFromConfig: %v", err)
	}
	if cal.Model != geometry.LifecamHD5000 {
		t.Errorf("Model = %v, want lifecam5000", cal.Model)
	}
	if cal.FOVPixelWidth != 640 || cal.FOVPixelHeight != 480 {
		t.Errorf("resolution = %vx%v, want 640x480", cal.FOVPixelWidth, cal.FOVPixelHeight)
	}
}

func TestCalibrationFromConfig_CustomResolution(t *testing.T) {
	cfg := newTestConfig()
	cfg.Camera.WidthPx = 320
	cfg.Camera.HeightPx = 240
	cal, err := calibrationFromConfig(cfg)
	if err != nil {
		t.Fatalf("calibrationFromConfig: %v", err)
	}
	if cal.FOVPixelWidth != 320 || cal.FOVPixelHeight != 240 {
		t.Errorf("resolution = %vx%v, want 320x240", cal.FOVPixelWidth, cal.FOVPixelHeight)
	}
}

func TestCalibrationFromConfig_UnknownModel(t *testing.T) {
	cfg := newTestConfig()
	cfg.Camera.Model = "gopro"
	if _, err := calibrationFromConfig(cfg); err == nil {
		t.Error("expected error for unknown model")
	}
}

// ---------- attachMount ----------

func TestAttachMount_None(t *testing.T) {
	cfg := newTestConfig()
	cfg.Mount.Transport = config.TransportNone
	m := attachMount(context.Background(), cfg)
	if m.Attached() {
		t.Error("transport none should leave the mount detached")
	}
}

func TestAttachMount_SocketRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := newTestConfig()
	cfg.Mount.Transport = config.TransportSocket
	cfg.Mount.Address = addr
	m := attachMount(context.Background(), cfg)
	if m.Attached() {
		t.Error("refused socket should leave the mount detached")
	}
}

func TestAttachMount_SocketReady(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		conn.Write([]byte("Ready"))
		buf := make([]byte, 64)
		for {
			if _, err := conn.Read(buf); err != nil {
				conn.Close()
				return
			}
		}
	}()

	cfg := newTestConfig()
	cfg.Mount.Transport = config.TransportSocket
	cfg.Mount.Address = ln.Addr().String()
	m := attachMount(context.Background(), cfg)
	defer m.Close()
	if !m.Attached() {
		t.Fatal("mount announcing Ready should attach")
	}
}
