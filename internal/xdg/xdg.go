// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Loreweave Contributors

// Package xdg provides XDG Base Directory paths for Loreweave.
package xdg

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const (
	appName    = "loreweave"
	configName = "config.yaml"
)

// ConfigDir returns the XDG config directory for loreweave.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", oops.Code("XDG_HOME_UNKNOWN").With("operation", "resolve config dir").Wrap(err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, appName), nil
}

// DefaultConfigFile returns the path of config.yaml in ConfigDir when
// that file exists, and "" when it does not.
func DefaultConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, configName)
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return "", nil
	case err != nil:
		// Permission errors surface rather than silently skipping the file.
		return "", oops.Code("XDG_CONFIG_UNREADABLE").With("path", path).Wrap(err)
	case info.IsDir():
		return "", oops.Code("XDG_CONFIG_UNREADABLE").With("path", path).Errorf("config path is a directory")
	}
	return path, nil
}
