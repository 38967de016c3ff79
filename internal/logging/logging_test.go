package logging

import (
	"bytes"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   LevelDebug,
		"DEBUG":   LevelDebug,
		"info":    LevelInfo,
		"warn":    LevelWarn,
		"warning": LevelWarn,
		"error":   LevelError,
		"":        LevelInfo,
		"loud":    LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)
	defer SetLevel(LevelInfo)

	SetLevel(LevelWarn)
	Infof("hidden %d", 1)
	Warnf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered: %q", out)
	}
	if !strings.Contains(out, "WARN shown 2") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestSetupWithFile(t *testing.T) {
	defer log.SetOutput(os.Stderr)
	defer SetLevel(LevelInfo)

	path := filepath.Join(t.TempDir(), "logs", "perspective.log")
	closer, err := Setup("debug", path)
	if err != nil {
		t.Fatal(err)
	}
	Debugf("written to file")
	closer.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "DEBUG written to file") {
		t.Errorf("log file missing message: %q", data)
	}
}
