package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adam-ii/dos-int21h/internal/config"
)

func TestHexValue(t *testing.T) {
	tests := []struct {
		in      string
		bits    int
		want    uint64
		wantErr bool
	}{
		{"3d", 8, 0x3D, false},
		{"0x3D", 8, 0x3D, false},
		{"1234", 16, 0x1234, false},
		{"100", 8, 0, true},
		{"zz", 16, 0, true},
	}
	for _, tt := range tests {
		h := hexValue{bits: tt.bits}
		err := h.Set(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("Set(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && (h.v != tt.want || !h.set) {
			t.Errorf("Set(%q) = %x (set %v), want %x", tt.in, h.v, h.set, tt.want)
		}
	}
}

func TestRunLogsNothingOnSuccess(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "TEST.TXT"), []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		format string
		marker string
	}{
		{config.FormatText, "level="},
		{config.FormatPlain, "warning:"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			cfg := config.Default()
			cfg.Root = root
			cfg.LogFormat = tt.format
			cfg.LogLevel = "warning"
			var logs bytes.Buffer

			if err := run(cfg, cfg.Logger(&logs), "TEST.TXT"); err != nil {
				t.Fatalf("run() error: %v", err)
			}
			if strings.Contains(logs.String(), tt.marker) {
				t.Errorf("unexpected log output:\n%s", logs.String())
			}
		})
	}
}

func TestRunPlainLogFormatTagsComponents(t *testing.T) {
	cfg := config.Default()
	cfg.Root = t.TempDir()
	cfg.LogFormat = config.FormatPlain
	cfg.LogLevel = "debug"
	var logs bytes.Buffer

	if err := run(cfg, cfg.Logger(&logs), "TEST.TXT"); err != nil {
		t.Fatalf("run() error: %v", err)
	}
	for _, want := range []string{
		"debug: int 21h: installed f000:",
		"[gate=21h]\n",
		"debug: AH=3d failed: ",
		"[component=dos]\n",
		"debug: 4 traps taken\n",
	} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("plain log should contain %q:\n%s", want, logs.String())
		}
	}
}
