package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds CLI configuration
type Config struct {
	ServerURL string
	// StateFile remembers the watermark of the last sync
	StateFile string
	Output    string
	Verbose   bool
}

// DefaultConfig returns a Config with default values
func DefaultConfig() *Config {
	return &Config{
		ServerURL: getEnvOrDefault("BANKCTL_SERVER", "http://localhost:8080"),
		StateFile: getEnvOrDefault("BANKCTL_STATE_FILE", defaultStateFile()),
		Output:    "text",
		Verbose:   false,
	}
}

// LoadWatermark returns the saved sync watermark, or 0 if none was saved
func (c *Config) LoadWatermark() (int64, error) {
	data, err := os.ReadFile(c.StateFile)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil // Never synced
		}
		return 0, err
	}

	watermark, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt state file %s: %w", c.StateFile, err)
	}
	return watermark, nil
}

// SaveWatermark saves the sync watermark to the state file
func (c *Config) SaveWatermark(watermark int64) error {
	dir := filepath.Dir(c.StateFile)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	return os.WriteFile(c.StateFile, []byte(strconv.FormatInt(watermark, 10)), 0600)
}

func defaultStateFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bankctl/watermark"
	}
	return filepath.Join(home, ".bankctl", "watermark")
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
