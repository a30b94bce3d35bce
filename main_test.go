package main

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

type mockApp struct {
	opts   AppOptions
	called map[string]bool
}

func newMockApp() *mockApp {
	return &mockApp{
		called: make(map[string]bool),
	}
}

func (m *mockApp) ApplyOptions(opts AppOptions) { m.opts = opts }
func (m *mockApp) RunGrade() error              { m.called["RunGrade"] = true; return nil }
func (m *mockApp) RunService() error            { m.called["RunService"] = true; return nil }

func TestRun_Flags(t *testing.T) {
	tests := []struct {
		name           string
		args           []string
		expectedCalled string
		verifyOpts     func(*testing.T, AppOptions)
	}{
		{
			name:           "GradeFile",
			args:           []string{"--file", "sheet.png", "--num", "5"},
			expectedCalled: "RunGrade",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.File != "sheet.png" {
					t.Errorf("expected File sheet.png, got %s", opts.File)
				}
				if opts.Answers != 5 {
					t.Errorf("expected Answers 5, got %d", opts.Answers)
				}
			},
		},
		{
			name:           "PositionalFile",
			args:           []string{"--comp", "key.json", "scan.jpg"},
			expectedCalled: "RunGrade",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.File != "scan.jpg" {
					t.Errorf("expected File scan.jpg, got %s", opts.File)
				}
				if opts.Compare != "key.json" {
					t.Errorf("expected Compare key.json, got %s", opts.Compare)
				}
			},
		},
		{
			name:           "GradeURL",
			args:           []string{"--url", "http://cam.local/sheet.jpg", "--timeout", "5s"},
			expectedCalled: "RunGrade",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.URL != "http://cam.local/sheet.jpg" {
					t.Errorf("expected URL, got %s", opts.URL)
				}
				if opts.FetchTimeout != 5*time.Second {
					t.Errorf("expected FetchTimeout 5s, got %v", opts.FetchTimeout)
				}
			},
		},
		{
			name:           "Outputs",
			args:           []string{"--file", "a.png", "--dout", "out.json", "--iout", "out.png", "--vout", "grid.svg"},
			expectedCalled: "RunGrade",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if opts.DataOut != "out.json" {
					t.Errorf("expected DataOut out.json, got %s", opts.DataOut)
				}
				if opts.ImageOut != "out.png" {
					t.Errorf("expected ImageOut out.png, got %s", opts.ImageOut)
				}
				if opts.VectorOut != "grid.svg" {
					t.Errorf("expected VectorOut grid.svg, got %s", opts.VectorOut)
				}
			},
		},
		{
			name:           "MqttMode",
			args:           []string{"--mqtt", "--config", "stations.yaml"},
			expectedCalled: "RunService",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if !opts.MqttMode {
					t.Error("expected MqttMode true")
				}
				if opts.ConfigFile != "stations.yaml" {
					t.Errorf("expected ConfigFile stations.yaml, got %s", opts.ConfigFile)
				}
			},
		},
		{
			name:           "HttpMode",
			args:           []string{"--http", "--http-port", "9090"},
			expectedCalled: "RunService",
			verifyOpts: func(t *testing.T, opts AppOptions) {
				if !opts.HttpMode {
					t.Error("expected HttpMode true")
				}
				if opts.HttpPort != 9090 {
					t.Errorf("expected HttpPort 9090, got %d", opts.HttpPort)
				}
			},
		},
		{
			name:           "ServiceWinsOverFile",
			args:           []string{"--http", "--file", "sheet.png"},
			expectedCalled: "RunService",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newMockApp()
			var out bytes.Buffer
			err := run(tt.args, &out, app)
			if err != nil {
				t.Fatalf("run failed: %v", err)
			}

			if !app.called[tt.expectedCalled] {
				t.Errorf("expected %s to be called", tt.expectedCalled)
			}
			if len(app.called) != 1 {
				t.Errorf("expected exactly one mode, got %v", app.called)
			}

			if tt.verifyOpts != nil {
				tt.verifyOpts(t, app.opts)
			}
		})
	}
}

func TestRun_Help(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	err := run([]string{"--help"}, &out, app)
	if err == nil {
		t.Error("expected error from --help, got nil")
	}
	if !strings.Contains(out.String(), "Usage of bubblegrade") {
		t.Errorf("expected usage info in output, got: %s", out.String())
	}
}

func TestRun_BadFlag(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	if err := run([]string{"--num", "many"}, &out, app); err == nil {
		t.Error("expected error for non-numeric --num")
	}
	if len(app.called) != 0 {
		t.Errorf("no mode should run on a parse error, got %v", app.called)
	}
}

func TestRun_Default(t *testing.T) {
	app := newMockApp()
	var out bytes.Buffer
	err := run([]string{}, &out, app)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	expectedPrefix := "bubblegrade version: " + Version
	if !strings.Contains(out.String(), expectedPrefix) {
		t.Errorf("expected output to contain version, got: %s", out.String())
	}
	if !strings.Contains(out.String(), "No sheet given.") {
		t.Errorf("expected usage hint, got: %s", out.String())
	}
	if len(app.called) != 0 {
		t.Errorf("expected no mode to run, got %v", app.called)
	}
	if app.opts.ConfigFile != "config.yaml" {
		t.Errorf("expected default ConfigFile config.yaml, got %s", app.opts.ConfigFile)
	}
}

func TestMain_Execute(t *testing.T) {
	// Smoke test to ensure version is set
	if Version == "" {
		t.Error("expected Version to be set")
	}
}
