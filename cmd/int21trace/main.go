// Binary int21trace runs small DOS programs on a simulated PC with a tracer
// hooked into the DOS service interrupt, and prints every call it sees.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/adam-ii/dos-int21h/common"
	"github.com/adam-ii/dos-int21h/internal/config"
)

var (
	configPath = flag.String("config", "", "path to a TOML configuration file")
	logLevel   = flag.String("log-level", "", "log level (debug, info, warning, error); overrides the configuration")
	logFormat  = flag.String("log-format", "", "log format (text, plain); overrides the configuration")
)

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&runCmd{}, "")
	subcommands.Register(&decodeCmd{}, "")
	subcommands.Register(&rulesCmd{}, "")
	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

// setup loads the configuration and builds the logger every command uses.
func setup() (*config.Config, common.FieldLogger, error) {
	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			return nil, nil, err
		}
	}
	if *logLevel != "" || *logFormat != "" {
		if *logLevel != "" {
			cfg.LogLevel = *logLevel
		}
		if *logFormat != "" {
			cfg.LogFormat = *logFormat
		}
		if err := cfg.Validate(); err != nil {
			return nil, nil, err
		}
	}
	return cfg, cfg.Logger(os.Stderr), nil
}
