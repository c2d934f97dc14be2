package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wolfeidau/faceterm/internal/api"
	"gopkg.in/yaml.v3"
)

// PersonConfig is one entry of a registrations file.
type PersonConfig struct {
	UserID   string `yaml:"userId" json:"userId"`
	Name     string `yaml:"name" json:"name"`
	ImageURL string `yaml:"imageUrl" json:"imageUrl"`
}

type RegistrationsFile struct {
	Persons []PersonConfig `yaml:"persons" json:"persons"`
}

type RegisterCmd struct {
	Org      string `arg:"" help:"Organization id"`
	UserID   string `help:"User id (the terminal's customId)"`
	Name     string `help:"Display name"`
	ImageURL string `help:"Face image URL reachable by the terminal"`
	File     string `help:"YAML/JSON file with a list of persons to register" type:"path"`
}

// Run queues each registration. Results arrive asynchronously on the
// server.
func (c *RegisterCmd) Run(ctx context.Context, globals *Globals) error {
	persons, err := c.persons()
	if err != nil {
		return err
	}

	cl := globals.client()
	for _, p := range persons {
		if err := cl.Register(ctx, c.Org, api.PersonRequest(p)); err != nil {
			return fmt.Errorf("failed to register %s: %w", p.UserID, err)
		}
	}

	fmt.Printf("Queued %d registration(s) for %s\n", len(persons), c.Org)
	return nil
}

func (c *RegisterCmd) persons() ([]PersonConfig, error) {
	if c.File == "" {
		if c.UserID == "" {
			return nil, errors.New("either --user-id or --file is required")
		}
		return []PersonConfig{{UserID: c.UserID, Name: c.Name, ImageURL: c.ImageURL}}, nil
	}

	return loadRegistrationsFile(c.File)
}

func loadRegistrationsFile(path string) ([]PersonConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registrations file: %w", err)
	}

	var f RegistrationsFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &f)
	default:
		err = yaml.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse registrations file %s: %w", path, err)
	}

	if len(f.Persons) == 0 {
		return nil, fmt.Errorf("no persons in %s", path)
	}
	return f.Persons, nil
}

type AddPersonCmd struct {
	Org      string `arg:"" help:"Organization id"`
	UserID   string `required:"" help:"User id (the terminal's customId)"`
	Name     string `help:"Display name"`
	ImageURL string `required:"" help:"Face image URL reachable by the terminal"`
}

// Run registers one person and waits for the terminal's answer.
func (c *AddPersonCmd) Run(ctx context.Context, globals *Globals) error {
	ok, err := globals.client().AddPerson(ctx, c.Org, api.PersonRequest{
		UserID:   c.UserID,
		Name:     c.Name,
		ImageURL: c.ImageURL,
	})
	if err != nil {
		return fmt.Errorf("failed to add person: %w", err)
	}
	if !ok {
		return fmt.Errorf("terminal rejected %s", c.UserID)
	}

	fmt.Printf("Registered %s with %s\n", c.UserID, c.Org)
	return nil
}
