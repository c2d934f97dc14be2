package commands

import (
	"time"

	"github.com/wolfeidau/faceterm/internal/client"
)

type Globals struct {
	Debug   bool
	Version string
	Server  string
	Timeout time.Duration
}

func (g *Globals) client() *client.Client {
	return client.New(client.Config{
		ServerURL: g.Server,
		Timeout:   g.Timeout,
	})
}
