// Copyright 2025, Command Line Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/outrigdev/logcatcher/pkg/base"
	"github.com/outrigdev/logcatcher/pkg/utilfn"
)

// LoadConfig finds the configuration. Fields missing from the JSON keep their defaults.
// Returns nil, nil when no configuration is found.
func LoadConfig() (*Config, error) {
	// 1. explicit JSON env var
	if configJson := os.Getenv(base.ConfigJsonEnvName); configJson != "" {
		cfg, err := parseConfig([]byte(configJson))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", base.ConfigJsonEnvName, err)
		}
		return cfg, nil
	}

	// 2. explicit config file env var
	if configFile := os.Getenv(base.ConfigFileEnvName); configFile != "" {
		cfg, err := tryLoadConfig(utilfn.ExpandHomeDir(configFile))
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			return cfg, nil
		}
		// set but missing is an error
		return nil, fmt.Errorf("%s=%q: %w", base.ConfigFileEnvName, configFile, os.ErrNotExist)
	}

	// 3. walk up from cwd (stops at a project root or home)
	return findConfigInParents()
}

// LoadConfigOrDefault never returns nil on success.
func LoadConfigOrDefault() (*Config, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return cfg, nil
}

func findConfigInParents() (*Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	homeDir := utilfn.GetHomeDir()
	for {
		cfg, err := tryLoadConfig(filepath.Join(dir, base.ConfigFileName))
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			return cfg, nil
		}
		if hasProjectRoot(dir) {
			break
		}
		if homeDir != "" && dir == homeDir {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir || parent == "/" {
			break
		}
		dir = parent
	}
	return nil, nil
}

func hasProjectRoot(dir string) bool {
	markers := []string{".git", "go.mod"}
	for _, marker := range markers {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

func tryLoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	cfg, err := parseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

func parseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
