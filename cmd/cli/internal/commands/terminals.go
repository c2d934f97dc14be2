package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

type TerminalsCmd struct {
	Add     TerminalsAddCmd     `cmd:"" help:"Assign a terminal to an organization"`
	List    TerminalsListCmd    `cmd:"" help:"List an organization's terminals"`
	Remove  TerminalsRemoveCmd  `cmd:"" help:"Unassign a terminal"`
	Replace TerminalsReplaceCmd `cmd:"" help:"Swap a terminal for another, keeping its routing position"`
}

type TerminalsAddCmd struct {
	Org      string `arg:"" help:"Organization id"`
	Terminal string `arg:"" help:"Terminal id"`
}

func (c *TerminalsAddCmd) Run(ctx context.Context, globals *Globals) error {
	terminals, err := globals.client().AddTerminal(ctx, c.Org, c.Terminal)
	if err != nil {
		return fmt.Errorf("failed to add terminal: %w", err)
	}
	printTerminals(os.Stdout, c.Org, terminals)
	return nil
}

type TerminalsListCmd struct {
	Org string `arg:"" help:"Organization id"`
}

func (c *TerminalsListCmd) Run(ctx context.Context, globals *Globals) error {
	terminals, err := globals.client().ListTerminals(ctx, c.Org)
	if err != nil {
		return fmt.Errorf("failed to list terminals: %w", err)
	}
	printTerminals(os.Stdout, c.Org, terminals)
	return nil
}

type TerminalsRemoveCmd struct {
	Org      string `arg:"" help:"Organization id"`
	Terminal string `arg:"" help:"Terminal id"`
}

func (c *TerminalsRemoveCmd) Run(ctx context.Context, globals *Globals) error {
	if err := globals.client().RemoveTerminal(ctx, c.Org, c.Terminal); err != nil {
		return fmt.Errorf("failed to remove terminal: %w", err)
	}
	fmt.Printf("Removed terminal %s from %s\n", c.Terminal, c.Org)
	return nil
}

type TerminalsReplaceCmd struct {
	Org string `arg:"" help:"Organization id"`
	Old string `arg:"" help:"Terminal id to replace"`
	New string `arg:"" help:"Replacement terminal id"`
}

func (c *TerminalsReplaceCmd) Run(ctx context.Context, globals *Globals) error {
	terminals, err := globals.client().ReplaceTerminal(ctx, c.Org, c.Old, c.New)
	if err != nil {
		return fmt.Errorf("failed to replace terminal: %w", err)
	}
	printTerminals(os.Stdout, c.Org, terminals)
	return nil
}

func printTerminals(w io.Writer, orgID string, terminals []string) {
	if len(terminals) == 0 {
		fmt.Fprintf(w, "No terminals registered for %s\n", orgID)
		return
	}

	fmt.Fprintf(w, "%-12s %-10s %s\n", "ORGANIZATION", "POSITION", "TERMINAL")
	fmt.Fprintln(w, strings.Repeat("-", 40))
	for i, terminalID := range terminals {
		fmt.Fprintf(w, "%-12s %-10d %s\n", orgID, i, terminalID)
	}
}
