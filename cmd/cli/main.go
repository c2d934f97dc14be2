package main

import (
	"context"
	"time"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/faceterm/cmd/cli/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Terminals commands.TerminalsCmd `cmd:"" help:"Manage organization terminals"`
		Register  commands.RegisterCmd  `cmd:"" help:"Queue face registrations (batched)"`
		AddPerson commands.AddPersonCmd `cmd:"" help:"Register one face and wait for the terminal"`
		Server    string                `help:"Server URL" default:"http://localhost:8080" env:"FACETERM_SERVER"`
		Timeout   time.Duration         `help:"Request timeout" default:"30s"`
		Debug     bool                  `help:"Enable debug mode."`
		Version   kong.VersionFlag
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("faceterm"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Debug: cli.Debug, Version: version, Server: cli.Server, Timeout: cli.Timeout})
	cmd.FatalIfErrorf(err)
}
