package probe

import (
	"fmt"
	"time"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/heuristics"
)

// Strategy names, in execution order.
const (
	StrategyHostUART = "uart-host"
	StrategyEdgeUART = "uart-edges"
	StrategyI2C      = "i2c"
	StrategySPI      = "spi"
	StrategyJTAG     = "jtag"
)

// Strategies lists every strategy in the fixed order Run executes them.
var Strategies = []string{StrategyHostUART, StrategyEdgeUART, StrategyI2C, StrategySPI, StrategyJTAG}

// Config controls the probe run.
type Config struct {
	// Edge capture
	EdgeWindow time.Duration `yaml:"edge_window"` // Capture window per pin (default: 300ms)

	// Host UART
	Bauds []int `yaml:"bauds"` // Rates to try, in order (default: heuristics.CommonBauds)

	// Attempt budgets (0 = unbounded)
	I2CMaxAttempts  int `yaml:"i2c_max_attempts"`  // default: 0
	SPIMaxAttempts  int `yaml:"spi_max_attempts"`  // default: 400
	JTAGMaxAttempts int `yaml:"jtag_max_attempts"` // default: 800

	// SkipStrategies disables strategies by name.
	SkipStrategies []string `yaml:"skip"`
}

// DefaultConfig returns a Config with the standard search bounds.
func DefaultConfig() *Config {
	return &Config{
		EdgeWindow:      300 * time.Millisecond,
		Bauds:           append([]int(nil), heuristics.CommonBauds...),
		I2CMaxAttempts:  0,
		SPIMaxAttempts:  400,
		JTAGMaxAttempts: 800,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.EdgeWindow <= 0 {
		return &ConfigError{Field: "edge_window", Reason: fmt.Sprintf("must be positive, got %s", c.EdgeWindow)}
	}
	if len(c.Bauds) == 0 {
		return &ConfigError{Field: "bauds", Reason: "at least one baud rate is required"}
	}
	for _, b := range c.Bauds {
		if b <= 0 {
			return &ConfigError{Field: "bauds", Reason: fmt.Sprintf("invalid baud rate %d", b)}
		}
	}
	budgets := map[string]int{
		"i2c_max_attempts":  c.I2CMaxAttempts,
		"spi_max_attempts":  c.SPIMaxAttempts,
		"jtag_max_attempts": c.JTAGMaxAttempts,
	}
	for field, v := range budgets {
		if v < 0 {
			return &ConfigError{Field: field, Reason: fmt.Sprintf("must not be negative, got %d", v)}
		}
	}
	for _, name := range c.SkipStrategies {
		if !isStrategy(name) {
			return &ConfigError{Field: "skip", Reason: fmt.Sprintf("unknown strategy %q", name)}
		}
	}
	return nil
}

// ShouldRun returns true unless the strategy is listed in SkipStrategies.
func (c *Config) ShouldRun(strategy string) bool {
	for _, s := range c.SkipStrategies {
		if s == strategy {
			return false
		}
	}
	return true
}

func isStrategy(name string) bool {
	for _, s := range Strategies {
		if s == name {
			return true
		}
	}
	return false
}
