// Package config loads a tallierd process's static configuration: the
// shared field prime, candidate list, peer addresses, and this tallier's
// own identity, ported from original_source/config.py's load(). TLS
// material paths follow leanlp-BTC-coinjoin's requireEnv/getEnvOrDefault
// convention: no fallback defaults for security-sensitive values.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/arthurzam/securevote/pkg/clique"
)

// TallierAddress is one peer's listen address, matching clique.Address's
// shape so it can be converted directly.
type TallierAddress struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (a TallierAddress) toClique() clique.Address {
	return clique.Address{Host: a.Host, Port: a.Port}
}

// Config is a single tallier's static election configuration, ported from
// config.py's SimpleNamespace fields (p, CANDIDATES, TALLIERS, K, L, and —
// new in this port — SelfID, which the original passed as a CLI argument
// rather than a config field).
type Config struct {
	P           uint64           `json:"p"`
	Candidates  []string         `json:"candidates"`
	Talliers    []TallierAddress `json:"talliers"`
	WinnerCount int              `json:"winner_count"`
	RangeBound  uint64           `json:"range_bound"`
	Voters      []string         `json:"voters"`
	SelfID      int              `json:"self_id"`

	TLSCertFile string `json:"-"`
	TLSKeyFile  string `json:"-"`
	TLSCAFile   string `json:"-"`
}

// Peers returns every tallier address in clique.Address form.
func (c Config) Peers() []clique.Address {
	out := make([]clique.Address, len(c.Talliers))
	for i, a := range c.Talliers {
		out[i] = a.toClique()
	}
	return out
}

// Load reads the config file named by the CONFIG_PATH env var (defaulting
// to "config.json", per config.py's load(path='config.json')) and fills in
// TLS paths from required env vars — security-sensitive values never get a
// silent fallback.
func Load() (Config, error) {
	path := getEnvOrDefault("CONFIG_PATH", "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if len(c.Candidates) == 0 {
		return Config{}, fmt.Errorf("config: %s: candidates must be non-empty", path)
	}
	if len(c.Talliers) == 0 {
		return Config{}, fmt.Errorf("config: %s: talliers must be non-empty", path)
	}
	if c.SelfID < 0 || c.SelfID >= len(c.Talliers) {
		return Config{}, fmt.Errorf("config: %s: self_id %d out of range [0,%d)", path, c.SelfID, len(c.Talliers))
	}

	cert, err := requireEnv("TALLIERD_TLS_CERT_FILE")
	if err != nil {
		return Config{}, err
	}
	key, err := requireEnv("TALLIERD_TLS_KEY_FILE")
	if err != nil {
		return Config{}, err
	}
	ca, err := requireEnv("TALLIERD_TLS_CA_FILE")
	if err != nil {
		return Config{}, err
	}
	c.TLSCertFile, c.TLSKeyFile, c.TLSCAFile = cert, key, ca

	return c, nil
}

// requireEnv reads a required environment variable, returning an error
// (rather than leanlp-BTC-coinjoin's log.Fatalf) so callers — tests
// included — can decide how to handle a missing value.
func requireEnv(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("config: required environment variable %s is not set", key)
	}
	return val, nil
}

// getEnvOrDefault returns the env var value or a safe default for
// non-secret settings, ported verbatim from leanlp-BTC-coinjoin's helper of
// the same name.
func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
