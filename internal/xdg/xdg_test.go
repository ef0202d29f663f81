// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

package xdg

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigDir_EnvVar(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	got, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	want := "/custom/config/loreweave"
	if got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}

func TestConfigDir_Default(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/testuser")
	got, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	want := "/home/testuser/.config/loreweave"
	if got != want {
		t.Errorf("ConfigDir() = %q, want %q", got, want)
	}
}

func TestDefaultConfigFile_Missing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	got, err := DefaultConfigFile()
	if err != nil {
		t.Fatalf("DefaultConfigFile() error = %v", err)
	}
	if got != "" {
		t.Errorf("DefaultConfigFile() = %q, want empty", got)
	}
}

func TestDefaultConfigFile_Present(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	dir := filepath.Join(base, "loreweave")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(want, []byte("log:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := DefaultConfigFile()
	if err != nil {
		t.Fatalf("DefaultConfigFile() error = %v", err)
	}
	if got != want {
		t.Errorf("DefaultConfigFile() = %q, want %q", got, want)
	}
}

func TestDefaultConfigFile_Directory(t *testing.T) {
	base := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", base)
	if err := os.MkdirAll(filepath.Join(base, "loreweave", "config.yaml"), 0o700); err != nil {
		t.Fatal(err)
	}

	if _, err := DefaultConfigFile(); err == nil {
		t.Error("DefaultConfigFile() expected error for a directory")
	}
}
