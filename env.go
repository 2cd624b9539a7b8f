package e2ekit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadDotEnv reads .env and .env.local from dir and returns the merged
// key/value set. Entries in .env.local take precedence over .env; real
// environment variables are not touched, callers decide the final
// precedence. Missing files are fine.
func LoadDotEnv(dir string) (map[string]string, error) {
	vars := make(map[string]string)
	for _, name := range []string{".env", ".env.local"} {
		path := filepath.Join(dir, name)
		fileVars, err := parseEnvFile(path)
		if err != nil {
			return nil, err
		}
		for k, v := range fileVars {
			vars[k] = v
		}
	}
	return vars, nil
}

// parseEnvFile reads one key=value-per-line file. Blank lines and #-comments
// are skipped; an optional "export " prefix and surrounding quotes on the
// value are stripped.
func parseEnvFile(path string) (map[string]string, error) {
	content, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read env file %s: %w", path, err)
	}

	vars := make(map[string]string)
	for i, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid line %d in %s: %q", i+1, path, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		vars[key] = value
	}
	return vars, nil
}
