// Package config loads the tracer's TOML configuration.
package config

import (
	"errors"
	"fmt"
	"io"

	"github.com/BurntSushi/toml"

	"github.com/adam-ii/dos-int21h/common"
	"github.com/adam-ii/dos-int21h/internal/machine"
	"github.com/adam-ii/dos-int21h/internal/rm"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Log formats.
const (
	// FormatText is logrus key=value output.
	FormatText = "text"
	// FormatPlain is one "level: message" line per entry.
	FormatPlain = "plain"
)

// Image is a raw memory image mapped into upper memory for the decoder to
// read from.
type Image struct {
	Path string `toml:"image"`
	Base uint32 `toml:"base"`
}

// Config is the configuration of a trace run.
type Config struct {
	// Gate is the interrupt vector to trace.
	Gate uint8 `toml:"gate"`
	// BufferSize is the capacity of the trace buffer in bytes.
	BufferSize int `toml:"buffer_size"`
	// MaxString bounds ASCIZ arguments in the trace.
	MaxString int `toml:"max_string"`
	// LogLevel is one of debug, info, warning, error.
	LogLevel string `toml:"log_level"`
	// LogFormat is FormatText or FormatPlain.
	LogFormat string `toml:"log_format"`
	// Root is the host directory the DOS kernel serves files from.
	Root string `toml:"root"`
	// Memory lists the images to map.
	Memory []Image `toml:"memory"`
	// DirectVectors makes the session write the vector table itself instead
	// of asking DOS, which keeps the restore out of the trace.
	DirectVectors bool `toml:"direct_vectors"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Gate:       rm.GateDOS,
		BufferSize: 4096,
		MaxString:  128,
		LogLevel:   "info",
		LogFormat:  FormatText,
		Root:       ".",
	}
}

// Load reads path over the defaults, so a file only needs the keys it
// changes.
func Load(path string) (*Config, error) {
	c := Default()
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: %s: unknown keys %v", ErrInvalidConfig, path, undecoded)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Validate checks values the decoder cannot.
func (c *Config) Validate() error {
	if c.Gate == 0 {
		return fmt.Errorf("%w: gate 0 is the divide error vector", ErrInvalidConfig)
	}
	if c.BufferSize < 1 {
		return fmt.Errorf("%w: buffer_size %d", ErrInvalidConfig, c.BufferSize)
	}
	if c.MaxString < 1 {
		return fmt.Errorf("%w: max_string %d", ErrInvalidConfig, c.MaxString)
	}
	if _, err := common.ParseSeverity(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.LogFormat != FormatText && c.LogFormat != FormatPlain {
		return fmt.Errorf("%w: log_format %q", ErrInvalidConfig, c.LogFormat)
	}
	if c.Root == "" {
		return fmt.Errorf("%w: empty root", ErrInvalidConfig)
	}
	for i, img := range c.Memory {
		if img.Path == "" {
			return fmt.Errorf("%w: memory[%d] has no image", ErrInvalidConfig, i)
		}
		if uint64(img.Base) < machine.UpperMemoryBase || img.Base > rm.AddrMask {
			return fmt.Errorf("%w: memory[%d] base 0x%05x outside upper memory", ErrInvalidConfig, i, img.Base)
		}
	}
	return nil
}

// Severity is the parsed log level.
func (c *Config) Severity() common.Severity {
	s, err := common.ParseSeverity(c.LogLevel)
	if err != nil {
		return common.SeverityInfo
	}
	return s
}

// Logger builds the logger the configuration selects, writing to w.
func (c *Config) Logger(w io.Writer) common.FieldLogger {
	if c.LogFormat == FormatPlain {
		return common.NewStdLogger(w, c.Severity())
	}
	return common.NewLogrusLogger(w, c.Severity())
}
