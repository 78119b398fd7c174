package service

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestResolveExecutableFirstMatch(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "zerobyte-server")
	second := filepath.Join(dir, "binaries", "zerobyte-server")

	if err := os.MkdirAll(filepath.Dir(second), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{first, second} {
		if err := os.WriteFile(p, []byte("#!/bin/sh\n"), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ResolveExecutable([]string{first, second})
	if err != nil {
		t.Fatalf("ResolveExecutable failed: %v", err)
	}
	if got != first {
		t.Errorf("resolved %q, want first candidate %q", got, first)
	}
}

func TestResolveExecutableSkipsMissingAndDirs(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "nope")
	asDir := filepath.Join(dir, "zerobyte-server")
	if err := os.Mkdir(asDir, 0o755); err != nil {
		t.Fatal(err)
	}
	real := filepath.Join(dir, "binaries", "zerobyte-server")
	if err := os.MkdirAll(filepath.Dir(real), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(real, []byte("x"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ResolveExecutable([]string{missing, asDir, real})
	if err != nil {
		t.Fatalf("ResolveExecutable failed: %v", err)
	}
	if got != real {
		t.Errorf("resolved %q, want %q", got, real)
	}
}

func TestResolveExecutableNotFound(t *testing.T) {
	_, err := ResolveExecutable([]string{filepath.Join(t.TempDir(), "absent")})
	if err == nil {
		t.Fatal("expected an error for missing executable")
	}
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if svcErr.Code != ErrCodeExecutableNotFound {
		t.Errorf("code = %q, want %q", svcErr.Code, ErrCodeExecutableNotFound)
	}
}

func TestDefaultCandidatesOrder(t *testing.T) {
	candidates := DefaultCandidates()
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	if filepath.Base(filepath.Dir(candidates[1])) != "binaries" {
		t.Errorf("second candidate should be in binaries/, got %q", candidates[1])
	}
}
