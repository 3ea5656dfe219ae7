package main

import (
	"encoding/json"
	"os"
	"path/filepath"
)

const configFileName = ".territory-benchmark.json"

// BenchmarkConfig is the dotfile that saves the target API between runs, so
// repeated invocations only need the auction flags.
type BenchmarkConfig struct {
	APIURL string `json:"api_url"`
	APIKey string `json:"api_key"`
}

// LoadConfig reads a saved config file.
func LoadConfig(path string) (*BenchmarkConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &BenchmarkConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig writes the config file, creating parent directories as needed.
func SaveConfig(path string, cfg *BenchmarkConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GetDefaultConfigPath returns the config location in the user's home
// directory, falling back to the working directory.
func GetDefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return configFileName
	}
	return filepath.Join(home, configFileName)
}
