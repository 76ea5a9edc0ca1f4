package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/adam-ii/dos-int21h/internal/decode"
)

// rulesCmd implements subcommands.Command for the "rules" command.
type rulesCmd struct{}

// Name implements subcommands.Command.
func (*rulesCmd) Name() string {
	return "rules"
}

// Synopsis implements subcommands.Command.
func (*rulesCmd) Synopsis() string {
	return "list the calls the decoder knows"
}

// Usage implements subcommands.Command.
func (*rulesCmd) Usage() string {
	return `rules - list the decoded calls in lookup order. Other calls are
traced as "Unhandled".
`
}

// SetFlags implements subcommands.Command.
func (*rulesCmd) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.
func (*rulesCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	for _, r := range decode.Rules() {
		fmt.Println(r)
	}
	return subcommands.ExitSuccess
}
