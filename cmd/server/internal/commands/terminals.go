package commands

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// terminalsFile is the seed file format:
//
//	organizations:
//	  abcd:
//	    - "1461173"
type terminalsFile struct {
	Organizations map[string][]string `yaml:"organizations"`
}

type terminalAdder interface {
	AddTerminal(ctx context.Context, orgID, terminalID string) error
}

func loadTerminalsFile(path string) (*terminalsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read terminals file: %w", err)
	}

	var f terminalsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse terminals file %s: %w", path, err)
	}
	return &f, nil
}

// seedTerminals adds every terminal in the file. Terminals already
// assigned to the same organization are left as they are.
func seedTerminals(ctx context.Context, adder terminalAdder, path string) error {
	f, err := loadTerminalsFile(path)
	if err != nil {
		return err
	}

	orgs := make([]string, 0, len(f.Organizations))
	for orgID := range f.Organizations {
		orgs = append(orgs, orgID)
	}
	sort.Strings(orgs)

	count := 0
	for _, orgID := range orgs {
		for _, terminalID := range f.Organizations[orgID] {
			if err := adder.AddTerminal(ctx, orgID, terminalID); err != nil {
				return fmt.Errorf("failed to seed terminal %s for %s: %w", terminalID, orgID, err)
			}
			count++
		}
	}

	log.Info().Str("path", path).Int("organizations", len(orgs)).Int("terminals", count).Msg("Terminals seeded")
	return nil
}
