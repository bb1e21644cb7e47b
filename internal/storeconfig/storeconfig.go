// Package storeconfig resolves and publishes the connection details of the
// inventory store.
package storeconfig

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// StoreConfig carries the store location, its public client key and the
// private database password. Password never leaves the process: it is not
// part of the JSON form and the remote endpoint cannot supply it.
type StoreConfig struct {
	URL      string `json:"storeUrl" yaml:"supabase_url"`
	AnonKey  string `json:"storeAnonKey" yaml:"supabase_anon_key"`
	Password string `json:"-" yaml:"store_password"`
}

// PublicConfig is what browser clients are allowed to see.
type PublicConfig struct {
	URL     string `json:"storeUrl"`
	AnonKey string `json:"storeAnonKey"`
}

// Empty reports whether no store is configured.
func (c StoreConfig) Empty() bool {
	return strings.TrimSpace(c.URL) == ""
}

// Public drops the password and any credentials embedded in the URL.
func (c StoreConfig) Public() PublicConfig {
	out := PublicConfig{AnonKey: c.AnonKey}
	u, err := url.Parse(strings.TrimSpace(c.URL))
	if err != nil {
		return out
	}
	u.User = nil
	out.URL = u.String()
	return out
}

// DSN returns the store URL with the private password applied. The anon key
// is a client value and is never used as a database credential.
func (c StoreConfig) DSN() (string, error) {
	if c.Empty() {
		return "", ErrNotConfigured
	}
	u, err := url.Parse(strings.TrimSpace(c.URL))
	if err != nil {
		return "", fmt.Errorf("storeconfig: parse url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", fmt.Errorf("storeconfig: unsupported scheme %q", u.Scheme)
	}
	if c.Password == "" {
		return u.String(), nil
	}
	user := "postgres"
	if u.User != nil && u.User.Username() != "" {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, c.Password)
	return u.String(), nil
}

// Source records where a resolved configuration came from.
type Source string

const (
	SourceNone   Source = "none"
	SourceEnv    Source = "env"
	SourceRemote Source = "remote"
	SourceFile   Source = "file"
)

// ErrNotConfigured is returned when no source yields a store URL.
var ErrNotConfigured = errors.New("storeconfig: store not configured")

// Resolver finds the store configuration for the running process.
type Resolver struct {
	Env             StoreConfig
	Host            string
	Endpoint        string
	CredentialsFile string
	Client          *http.Client
	Logger          *slog.Logger
}

// Resolve walks env, remote endpoint and credentials file in that order.
// An empty configuration with SourceNone is not an error. A password set in
// the environment applies to whichever source wins.
func (r Resolver) Resolve(ctx context.Context) (StoreConfig, Source, error) {
	cfg, source, err := r.resolve(ctx)
	if err == nil && !cfg.Empty() && r.Env.Password != "" {
		cfg.Password = r.Env.Password
	}
	return cfg, source, err
}

func (r Resolver) resolve(ctx context.Context) (StoreConfig, Source, error) {
	if !r.Env.Empty() {
		return r.Env, SourceEnv, nil
	}

	if r.Endpoint != "" && !IsLocalHost(r.Host) {
		cfg, err := r.fetch(ctx)
		if err == nil && !cfg.Empty() {
			return cfg, SourceRemote, nil
		}
		r.logger().Warn("store config fetch failed, using credentials file",
			slog.String("endpoint", r.Endpoint), slog.Any("error", err))
	}

	cfg, err := LoadFile(r.CredentialsFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return StoreConfig{}, SourceNone, nil
	case err != nil:
		return StoreConfig{}, SourceNone, err
	case cfg.Empty():
		return StoreConfig{}, SourceNone, nil
	}
	return cfg, SourceFile, nil
}

func (r Resolver) fetch(ctx context.Context) (StoreConfig, error) {
	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.Endpoint, nil)
	if err != nil {
		return StoreConfig{}, fmt.Errorf("storeconfig: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return StoreConfig{}, fmt.Errorf("storeconfig: fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return StoreConfig{}, fmt.Errorf("storeconfig: fetch: status %d", resp.StatusCode)
	}
	var cfg StoreConfig
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&cfg); err != nil {
		return StoreConfig{}, fmt.Errorf("storeconfig: decode: %w", err)
	}
	return cfg, nil
}

func (r Resolver) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// LoadFile reads the YAML credentials file.
func LoadFile(path string) (StoreConfig, error) {
	if path == "" {
		return StoreConfig{}, fs.ErrNotExist
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return StoreConfig{}, err
	}
	var cfg StoreConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return StoreConfig{}, fmt.Errorf("storeconfig: parse %s: %w", path, err)
	}
	return cfg, nil
}

// IsLocalHost reports whether host names a local development host.
func IsLocalHost(host string) bool {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "", "localhost", "127.0.0.1":
		return true
	}
	return false
}
