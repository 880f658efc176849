package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Thejuampi/amqp-client-go/internal/logging"
)

// Config controls what the peer accepts and how it advertises itself.
type Config struct {
	Addr            string
	Path            string
	Container       string
	AnonymousRelay  bool
	RelayAsProperty bool
	AcceptSessions  bool
	AcceptLinks     bool
	RejectAddresses []string
	Log             logging.Config
}

// DefaultConfig accepts everything on 127.0.0.1:5673 and does not offer the
// anonymous relay.
func DefaultConfig() Config {
	return Config{
		Addr:           "127.0.0.1:5673",
		Path:           "/amqp",
		Container:      "fakepeer",
		AcceptSessions: true,
		AcceptLinks:    true,
		Log:            logging.DefaultConfig(),
	}
}

// Validate reports the first invalid setting.
func (config Config) Validate() error {
	if strings.TrimSpace(config.Addr) == "" {
		return errors.New("fakepeer: addr must not be empty")
	}
	if !strings.HasPrefix(config.Path, "/") {
		return fmt.Errorf("fakepeer: path %q must start with /", config.Path)
	}
	if strings.TrimSpace(config.Container) == "" {
		return errors.New("fakepeer: container must not be empty")
	}
	if config.RelayAsProperty && !config.AnonymousRelay {
		return errors.New("fakepeer: relay_as_property requires anonymous_relay")
	}
	return nil
}

func (config Config) rejects(address string) bool {
	for _, rejected := range config.RejectAddresses {
		if rejected == address {
			return true
		}
	}
	return false
}

type fileConfig struct {
	Addr            string         `toml:"addr"`
	Path            string         `toml:"path"`
	Container       string         `toml:"container"`
	AnonymousRelay  bool           `toml:"anonymous_relay"`
	RelayAsProperty bool           `toml:"relay_as_property"`
	AcceptSessions  bool           `toml:"accept_sessions"`
	AcceptLinks     bool           `toml:"accept_links"`
	RejectAddresses []string       `toml:"reject_addresses"`
	Log             logging.Config `toml:"log"`
}

// loadConfig overlays the keys present in the TOML file at path on top of
// DefaultConfig.
func loadConfig(path string) (Config, error) {
	config := DefaultConfig()
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load fakepeer config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load fakepeer config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("addr") {
		config.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("path") {
		config.Path = strings.TrimSpace(raw.Path)
	}
	if meta.IsDefined("container") {
		config.Container = strings.TrimSpace(raw.Container)
	}
	if meta.IsDefined("anonymous_relay") {
		config.AnonymousRelay = raw.AnonymousRelay
	}
	if meta.IsDefined("relay_as_property") {
		config.RelayAsProperty = raw.RelayAsProperty
	}
	if meta.IsDefined("accept_sessions") {
		config.AcceptSessions = raw.AcceptSessions
	}
	if meta.IsDefined("accept_links") {
		config.AcceptLinks = raw.AcceptLinks
	}
	if meta.IsDefined("reject_addresses") {
		config.RejectAddresses = raw.RejectAddresses
	}
	if meta.IsDefined("log", "level") {
		config.Log.Level = raw.Log.Level
	}
	if meta.IsDefined("log", "format") {
		config.Log.Format = raw.Log.Format
	}
	if meta.IsDefined("log", "outputs") {
		config.Log.Outputs = raw.Log.Outputs
	}
	if meta.IsDefined("log", "no_color") {
		config.Log.NoColor = raw.Log.NoColor
	}
	if meta.IsDefined("log", "rotation") {
		config.Log.Rotation = raw.Log.Rotation
	}
	return config, config.Validate()
}
