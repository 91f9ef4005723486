package config

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
)

// LoadEnvFile reads the nearest .env (current directory or up to five parents)
// into the process environment. Variables already set are left untouched.
func LoadEnvFile(logger zerolog.Logger) {
	path, err := findEnvFile()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to locate .env")
		return
	}
	if path == "" {
		logger.Debug().Msg(".env not found in current or parent directories")
		return
	}

	file, err := os.Open(path)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to open .env")
		return
	}
	defer file.Close()

	if err := parseEnvFile(logger, file); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("failed to load .env")
		return
	}
	logger.Info().Str("path", path).Msg("loaded env file")
}

func findEnvFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for i := 0; i < 6; i++ {
		path := filepath.Join(dir, ".env")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", nil
}

func parseEnvFile(logger zerolog.Logger, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if first {
			line = strings.TrimPrefix(line, "\uFEFF")
			first = false
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		if err := os.Setenv(key, trimQuotes(strings.TrimSpace(value))); err != nil {
			logger.Warn().Err(err).Str("key", key).Msg("failed to set variable from env file")
		}
	}
	return scanner.Err()
}

func trimQuotes(value string) string {
	if len(value) < 2 {
		return value
	}
	if (value[0] == '"' && value[len(value)-1] == '"') ||
		(value[0] == '\'' && value[len(value)-1] == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}
