package coordinator

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/wolfeidau/faceterm/internal/clock"
	"github.com/wolfeidau/faceterm/internal/protocol"
)

// Command is an outbound instruction for an organization's terminal.
type Command struct {
	ID       string // correlation id, assigned by Dispatch
	OrgID    string
	Operator string
	Persons  []protocol.Person

	// Decode turns the ack's info object into a result. Defaults to
	// protocol.AckSucceeded.
	Decode func(info []byte) bool
}

// NewEditPerson builds a single person registration command.
func NewEditPerson(orgID string, p protocol.Person) *Command {
	return &Command{
		OrgID:    orgID,
		Operator: protocol.OperatorEditPerson,
		Persons:  []protocol.Person{p},
	}
}

// NewAddPersons builds a bulk registration command.
func NewAddPersons(orgID string, persons []protocol.Person) *Command {
	return &Command{
		OrgID:    orgID,
		Operator: protocol.OperatorAddPersons,
		Persons:  persons,
	}
}

func (c *Command) decode(info []byte) bool {
	if c.Decode != nil {
		return c.Decode(info)
	}
	return protocol.AckSucceeded(info)
}

// Registration is a request to enrol one person's face with an
// organization's terminals.
type Registration struct {
	OrgID    string
	UserID   string
	Name     string
	ImageURI string
}

// Validate checks the fields a terminal needs.
func (r Registration) Validate() error {
	switch {
	case r.OrgID == "":
		return fmt.Errorf("%w: organization id is required", ErrInvalidRegistration)
	case r.UserID == "":
		return fmt.Errorf("%w: user id is required", ErrInvalidRegistration)
	case r.ImageURI == "":
		return fmt.Errorf("%w: image reference is required", ErrInvalidRegistration)
	}
	return nil
}

func (r Registration) person() protocol.Person {
	return protocol.Person{UserID: r.UserID, Name: r.Name, ImageURI: r.ImageURI}
}

// idGenerator issues millisecond timestamp ids, the format terminals echo
// back in acks. Ids are strictly increasing so two commands dispatched in
// the same millisecond never share one.
type idGenerator struct {
	clock clock.Clock
	last  atomic.Int64
}

func (g *idGenerator) Next() string {
	for {
		last := g.last.Load()
		next := max(g.clock.Now().UnixMilli(), last+1)
		if g.last.CompareAndSwap(last, next) {
			return strconv.FormatInt(next, 10)
		}
	}
}
