package configutil

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

func splitExt(name string) (string, string) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i], name[i+1:]
		}
	}
	return name, ""
}

// ReadConfig reads a json5 configuration file. A sibling
// `<name>.local.<ext>` file, when present, is merged on top of the
// base file so per-machine overrides stay out of version control.
func ReadConfig[T any](name string) (T, error) {
	var out T
	allNotFound := true

	dirname := filepath.Dir(name)
	basename := filepath.Base(name)
	prefix, ext := splitExt(basename)

	base, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(base) > 0 {
		if err := json5.Unmarshal(base, &out); err != nil {
			return out, err
		}
		allNotFound = false
	}

	localPath := filepath.Join(dirname, fmt.Sprintf("%s.local.%s", prefix, ext))
	local, err := os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(local) > 0 {
		var override T
		if err := json5.Unmarshal(local, &override); err != nil {
			return out, err
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, err
		}
		slog.Debug("merged config with local overrides", "local", localPath)
		allNotFound = false
	}

	if allNotFound {
		return out, os.ErrNotExist
	}
	return out, nil
}

// ReadRecursively walks up from the working directory to the
// filesystem root looking for a config file with the given name.
func ReadRecursively[T any](name string) (T, error) {
	var zero T

	root, err := filepath.Abs("/")
	if err != nil {
		return zero, err
	}
	current, err := os.Getwd()
	if err != nil {
		return zero, err
	}

	for current != root {
		config, err := ReadConfig[T](filepath.Join(current, name))
		if os.IsNotExist(err) {
			current = filepath.Join(current, "..")
			continue
		}
		if err != nil {
			return zero, err
		}
		return config, nil
	}

	return zero, os.ErrNotExist
}
