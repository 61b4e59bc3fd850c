package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"
	"gopkg.in/yaml.v3"
)

// Write encodes the configuration, creating or truncating the file at path.
// Files ending in .yml or .yaml are written as YAML, everything else as TOML.
func Write(path string, config Config) (err error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() {
		if err2 := file.Close(); err2 != nil && err == nil {
			err = err2
		}
	}()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		encoder := yaml.NewEncoder(file)
		err = encoder.Encode(config)
		if err == nil {
			err = encoder.Close()
		}
	default:
		err = toml.NewEncoder(file).Encode(config)
	}
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return err // err should be nil here, but return err to catch deferred error
}
