package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/viper"
)

// Config ist die effektive Konfiguration eines Laufs. Sie wird einmal vom
// Resolver erzeugt und danach nicht mehr veraendert.
type Config struct {
	UPSName         string
	ShutdownDelay   int // Minuten
	FlagFile        string
	LogTag          string
	HubURL          string
	HubToken        string
	IgnoreSimulated bool
	StatusSource    string // "hub" oder "nut"
	NUTAddr         string
}

const (
	SourceHub = "hub"
	SourceNUT = "nut"
)

// Load reads the local cached config file (line oriented KEY=VALUE, comments
// with '#'). A missing or unreadable file is the only fatal config error:
// without it there is no fallback for the run.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")

	// Defaults setzen
	v.SetDefault("SHUTDOWN_DELAY", 15)
	v.SetDefault("FLAG_FILE", filepath.Join(os.TempDir(), "powerwatchdog.flag"))
	v.SetDefault("LOG_TAG", "powerwatchdog")
	v.SetDefault("STATUS_SOURCE", SourceHub)
	v.SetDefault("NUT_ADDR", "127.0.0.1:3493")
	v.SetDefault("IGNORE_SIMULATED", false)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := &Config{
		UPSName:         v.GetString("UPS_NAME"),
		ShutdownDelay:   v.GetInt("SHUTDOWN_DELAY"),
		FlagFile:        v.GetString("FLAG_FILE"),
		LogTag:          v.GetString("LOG_TAG"),
		HubURL:          strings.TrimRight(v.GetString("HUB_URL"), "/"),
		HubToken:        v.GetString("HUB_TOKEN"),
		IgnoreSimulated: v.GetBool("IGNORE_SIMULATED"),
		StatusSource:    v.GetString("STATUS_SOURCE"),
		NUTAddr:         v.GetString("NUT_ADDR"),
	}

	if cfg.ShutdownDelay < 0 {
		return nil, fmt.Errorf("invalid SHUTDOWN_DELAY %d: must be >= 0", cfg.ShutdownDelay)
	}
	if cfg.StatusSource != SourceHub && cfg.StatusSource != SourceNUT {
		return nil, fmt.Errorf("invalid STATUS_SOURCE %q", cfg.StatusSource)
	}

	return cfg, nil
}

// HubConfigured reports whether both hub URL and token are present.
func (c *Config) HubConfigured() bool {
	return c.HubURL != "" && c.HubToken != ""
}

// SaveOverrides rewrites only the given keys in the config file and leaves
// every other line byte for byte intact (cache-aside update after a
// successful hub fetch). Keys not present yet are appended.
func SaveOverrides(path string, updates map[string]string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config for rewrite: %w", err)
	}

	trailingNewline := strings.HasSuffix(string(raw), "\n")
	lines := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")

	seen := make(map[string]bool, len(updates))
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, _, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if val, ok := updates[key]; ok {
			lines[i] = key + "=" + val
			seen[key] = true
		}
	}

	// Fehlende Keys anhaengen, in stabiler Reihenfolge
	for _, key := range sortedKeys(updates) {
		if !seen[key] {
			lines = append(lines, key+"="+updates[key])
		}
	}

	out := strings.Join(lines, "\n")
	if trailingNewline || len(seen) < len(updates) {
		out += "\n"
	}

	if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("failed to rewrite config: %w", err)
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
