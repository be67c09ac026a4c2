// Package configutil reads json5 configuration files with optional
// `.local` overrides merged on top.
package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func splitExt(name string) (prefix, ext string) {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return name, ""
	}
	return name[:idx], name[idx+1:]
}

func loadFile[T any](path string, out *T) (bool, error) {
	contents, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json5.Unmarshal(contents, out); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// Load reads the config at `name` and merges `<name>.local.<ext>` over
// it, the local file winning on conflicts. Returns os.ErrNotExist when
// neither file is present.
func Load[T any](name string) (T, error) {
	var out T

	found, err := loadFile(name, &out)
	if err != nil {
		return out, err
	}

	prefix, ext := splitExt(name)
	localPath := fmt.Sprintf("%s.local.%s", prefix, ext)

	var local T
	foundLocal, err := loadFile(localPath, &local)
	if err != nil {
		return out, err
	}
	if foundLocal {
		if err := mergo.Merge(&out, local, mergo.WithOverride); err != nil {
			return out, err
		}
		slog.Debug("merged config with local overrides", "local", localPath)
	}

	if !found && !foundLocal {
		return out, os.ErrNotExist
	}
	return out, nil
}

// LoadRecursively walks up from the working directory to the filesystem
// root looking for a config file matching `name`.
func LoadRecursively[T any](name string) (T, error) {
	var zero T

	current, err := os.Getwd()
	if err != nil {
		return zero, err
	}

	for {
		config, err := Load[T](filepath.Join(current, name))
		if os.IsNotExist(err) {
			parent := filepath.Dir(current)
			if parent == current {
				return zero, os.ErrNotExist
			}
			current = parent
			continue
		}
		return config, err
	}
}
