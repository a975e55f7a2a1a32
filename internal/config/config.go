// Package config loads the tool's settings from a YAML file, .env files and
// the environment, in increasing order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/dump"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/glitch"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/link"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probehead"
)

// Transports.
const (
	TransportPico = "pico"
	TransportTCP  = "tcp"
	TransportSim  = "sim"
)

// Environment variables that override the file.
const (
	EnvTransport = "PROBE_TRANSPORT"
	EnvPort      = "PROBE_PORT"
	EnvBaud      = "PROBE_BAUD"
	EnvTarget    = "PROBE_TARGET"
	EnvDB        = "PROBE_DB"
	EnvDumpDir   = "PROBE_DUMP_DIR"
	EnvExport    = "PROBE_EXPORT"
	EnvCompress  = "PROBE_COMPRESSION"
)

type Config struct {
	Transport string        `yaml:"transport"`
	Port      string        `yaml:"port"` // serial device, or host:port for tcp
	Baud      int           `yaml:"baud"`
	BootDelay time.Duration `yaml:"boot_delay"`
	Target    string        `yaml:"target"`

	DB          string `yaml:"db"`
	DumpDir     string `yaml:"dump_dir"`
	Export      string `yaml:"export"`
	Compression string `yaml:"compression"` // dump codec: none, zstd or lz4

	Probe    probe.Config       `yaml:"probe"`
	Timeouts probehead.Timeouts `yaml:"timeouts"`
	Glitch   []glitch.Campaign  `yaml:"glitch"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Transport:   TransportSim,
		Baud:        115200,
		BootDelay:   link.DefaultBootDelay,
		Target:      "target",
		DB:          "results/session.db",
		DumpDir:     "results/dumps",
		Export:      "results/session.json",
		Compression: string(dump.CodecNone),
		Probe:       *probe.DefaultConfig(),
		Timeouts:    probehead.DefaultTimeouts(),
		Glitch:      glitch.DefaultCampaigns(),
	}
}

// Load reads the configuration and validates it.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg, err := Read(path, envFiles...)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read layers defaults, the YAML file at path (if path is not empty),
// envFiles (".env" when none are given and it exists) and the process
// environment. The result is not validated, so callers can apply further
// overrides first.
func Read(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, &probe.ConfigError{Field: "config", Reason: err.Error()}
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, &probe.ConfigError{Field: "config", Reason: fmt.Sprintf("%s: %v", path, err)}
		}
	}

	fileEnv, err := readEnvFiles(envFiles)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			return v, true
		}
		v, ok := fileEnv[key]
		return v, ok
	}); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readEnvFiles(files []string) (map[string]string, error) {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return map[string]string{}, nil
		}
		files = []string{".env"}
	}
	env, err := godotenv.Read(files...)
	if err != nil {
		return nil, &probe.ConfigError{Field: "env", Reason: err.Error()}
	}
	return env, nil
}

// ApplyEnv overrides fields from variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str(EnvTransport, &c.Transport)
	str(EnvPort, &c.Port)
	str(EnvTarget, &c.Target)
	str(EnvDB, &c.DB)
	str(EnvDumpDir, &c.DumpDir)
	str(EnvExport, &c.Export)
	str(EnvCompress, &c.Compression)

	if v, ok := lookup(EnvBaud); ok && strings.TrimSpace(v) != "" {
		baud, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &probe.ConfigError{Field: "baud", Reason: fmt.Sprintf("%s=%q is not a number", EnvBaud, v)}
		}
		c.Baud = baud
	}
	c.Transport = strings.ToLower(c.Transport)
	return nil
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportSim:
	case TransportPico, TransportTCP:
		if c.Port == "" {
			return &probe.ConfigError{Field: "port", Reason: fmt.Sprintf("the %s transport requires a port", c.Transport)}
		}
	default:
		return &probe.ConfigError{Field: "transport", Reason: fmt.Sprintf("unknown transport %q (want pico, tcp or sim)", c.Transport)}
	}
	if c.Baud <= 0 {
		return &probe.ConfigError{Field: "baud", Reason: fmt.Sprintf("must be positive, got %d", c.Baud)}
	}
	if c.BootDelay < 0 {
		return &probe.ConfigError{Field: "boot_delay", Reason: "must not be negative"}
	}
	if c.Target == "" {
		return &probe.ConfigError{Field: "target", Reason: "a target name is required"}
	}
	if c.DB == "" {
		return &probe.ConfigError{Field: "db", Reason: "a database path is required"}
	}
	if c.DumpDir == "" {
		return &probe.ConfigError{Field: "dump_dir", Reason: "a dump directory is required"}
	}
	if _, err := dump.ParseCodec(c.Compression); err != nil {
		return &probe.ConfigError{Field: "compression", Reason: err.Error()}
	}
	if err := c.Probe.Validate(); err != nil {
		return err
	}
	for i, camp := range c.Glitch {
		switch camp.Kind {
		case "", glitch.Voltage, glitch.Clock, glitch.Reset:
		default:
			return &probe.ConfigError{Field: fmt.Sprintf("glitch[%d].kind", i), Reason: fmt.Sprintf("unknown kind %q", camp.Kind)}
		}
	}
	return nil
}

// ProbeConfig returns a copy of the prober settings.
func (c *Config) ProbeConfig() *probe.Config {
	pc := c.Probe
	pc.Bauds = append([]int(nil), c.Probe.Bauds...)
	pc.SkipStrategies = append([]string(nil), c.Probe.SkipStrategies...)
	return &pc
}
