package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for terminal store operations
var (
	ErrTerminalNotFound      = errors.New("terminal not found")
	ErrTerminalAlreadyExists = errors.New("terminal already exists")
)

// Assignment records that a terminal belongs to an organization.
type Assignment struct {
	OrgID      string
	TerminalID string
	CreatedAt  time.Time
}

// TerminalStore persists terminal assignments so the registry survives a
// restart. Pending commands are never stored.
type TerminalStore interface {
	// Add stores a new assignment.
	// Returns ErrTerminalAlreadyExists if the terminal is assigned to any organization.
	Add(ctx context.Context, orgID, terminalID string) error

	// Remove deletes an assignment.
	// Returns ErrTerminalNotFound if terminalID is not assigned to orgID.
	Remove(ctx context.Context, orgID, terminalID string) error

	// Replace renames oldID to newID, keeping its position in List order.
	// Returns ErrTerminalNotFound if oldID is not assigned to orgID and
	// ErrTerminalAlreadyExists if newID is already assigned.
	Replace(ctx context.Context, orgID, oldID, newID string) error

	// List returns every assignment ordered by organization, then by the
	// order terminals were added.
	List(ctx context.Context) ([]Assignment, error)
}
