package terminal

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Sentinel errors for registry operations
var (
	ErrNoTerminalRegistered = errors.New("no terminal registered for organization")
	ErrUnknownTerminal      = errors.New("unknown terminal")
	ErrTerminalConflict     = errors.New("terminal registered to another organization")
	ErrTerminalNotFound     = errors.New("terminal not found")
)

// Registry maps organizations to their terminals and back. Terminal order
// within an organization is registration order, which routing strategies
// may rely on.
type Registry struct {
	mu sync.RWMutex

	terminals map[string][]string // org ID -> terminal IDs (registration order)
	owners    map[string]string   // terminal ID -> org ID

	strategy Strategy
}

// NewRegistry creates an empty registry. A nil strategy selects FirstRegistered.
func NewRegistry(strategy Strategy) *Registry {
	if strategy == nil {
		strategy = FirstRegistered{}
	}
	return &Registry{
		terminals: make(map[string][]string),
		owners:    make(map[string]string),
		strategy:  strategy,
	}
}

// Add registers terminalID under orgID. Adding a pair that already exists
// is a no-op; adding a terminal owned by a different organization fails
// with ErrTerminalConflict.
func (r *Registry) Add(orgID, terminalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[terminalID]; ok {
		if owner == orgID {
			return nil
		}
		return fmt.Errorf("%w: terminal %s belongs to %s", ErrTerminalConflict, terminalID, owner)
	}

	r.terminals[orgID] = append(r.terminals[orgID], terminalID)
	r.owners[terminalID] = orgID

	log.Debug().Str("org_id", orgID).Str("terminal_id", terminalID).Msg("Terminal added")
	return nil
}

// Remove unregisters terminalID from orgID.
func (r *Registry) Remove(orgID, terminalID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.owners[terminalID] != orgID {
		return fmt.Errorf("%w: %s/%s", ErrTerminalNotFound, orgID, terminalID)
	}

	list := r.terminals[orgID]
	idx := slices.Index(list, terminalID)
	list = slices.Delete(list, idx, idx+1)
	if len(list) == 0 {
		delete(r.terminals, orgID)
	} else {
		r.terminals[orgID] = list
	}
	delete(r.owners, terminalID)

	log.Debug().Str("org_id", orgID).Str("terminal_id", terminalID).Msg("Terminal removed")
	return nil
}

// Replace swaps oldID for newID in place, keeping its routing position.
func (r *Registry) Replace(orgID, oldID, newID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.owners[oldID] != orgID {
		return fmt.Errorf("%w: %s/%s", ErrTerminalNotFound, orgID, oldID)
	}
	if oldID == newID {
		return nil
	}
	if owner, ok := r.owners[newID]; ok {
		return fmt.Errorf("%w: terminal %s belongs to %s", ErrTerminalConflict, newID, owner)
	}

	list := r.terminals[orgID]
	list[slices.Index(list, oldID)] = newID
	delete(r.owners, oldID)
	r.owners[newID] = orgID

	log.Debug().Str("org_id", orgID).Str("old_terminal_id", oldID).Str("terminal_id", newID).Msg("Terminal replaced")
	return nil
}

// Resolve picks the terminal outbound commands for orgID are routed to.
func (r *Registry) Resolve(orgID string) (string, error) {
	r.mu.RLock()
	list := slices.Clone(r.terminals[orgID])
	r.mu.RUnlock()

	if len(list) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoTerminalRegistered, orgID)
	}
	return r.strategy.Pick(orgID, list)
}

// Organization returns the organization owning terminalID.
func (r *Registry) Organization(terminalID string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orgID, ok := r.owners[terminalID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownTerminal, terminalID)
	}
	return orgID, nil
}

// HasTerminal reports whether orgID has at least one terminal.
func (r *Registry) HasTerminal(orgID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.terminals[orgID]) > 0
}

// Terminals returns a copy of orgID's terminals in registration order.
func (r *Registry) Terminals(orgID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.terminals[orgID])
}

// Organizations returns the IDs of every organization with a terminal, sorted.
func (r *Registry) Organizations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orgs := make([]string, 0, len(r.terminals))
	for orgID := range r.terminals {
		orgs = append(orgs, orgID)
	}
	sort.Strings(orgs)
	return orgs
}
