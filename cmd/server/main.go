package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/wolfeidau/faceterm/cmd/server/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Dev     bool `help:"Enable development logging." env:"FACETERM_DEV"`
		Version kong.VersionFlag
		Serve   commands.ServerCmd `cmd:"" help:"Start the terminal coordinator (MQTT + HTTP API)"`
	}
)

func main() {
	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Name("faceterm-server"),
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{Dev: cli.Dev, Version: version})
	cmd.FatalIfErrorf(err)
}
