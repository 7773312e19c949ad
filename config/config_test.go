package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultIsProveMode(t *testing.T) {
	opts := Default()
	if opts.Mode != Prove {
		t.Fatalf("expected default mode %q, got %q", Prove, opts.Mode)
	}
	if opts.Mode.SuppressesAssertionFailures() {
		t.Fatalf("prove mode should not suppress assertion failures")
	}
}

func TestVerifyAndPreprocessSuppressAssertionFailures(t *testing.T) {
	for _, m := range []Mode{Verify, Preprocess} {
		if !m.SuppressesAssertionFailures() {
			t.Fatalf("%q should suppress assertion failures", m)
		}
	}
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	opts, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts != Default() {
		t.Fatalf("expected Default() for a missing file, got %+v", opts)
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sieve.yaml")
	yaml := "mode: verify\nfallbackRAM: true\ntraceLevel: 2\ndetailedGateCounts: true\nstrictSwitchStreamCounts: true\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	opts, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Options{
		Mode:                     Verify,
		FallbackRAM:              true,
		TraceLevel:               TraceVerbose,
		DetailedGateCounts:       true,
		StrictSwitchStreamCounts: true,
	}
	if opts != want {
		t.Fatalf("got %+v, want %+v", opts, want)
	}
}

func TestLoadRejectsInvalidMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sieve.yaml")
	if err := os.WriteFile(path, []byte("mode: nonsense\n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an invalid mode to be rejected")
	}
}
