package terminal

import (
	"sync"
)

// Strategy chooses the terminal an organization's commands are routed to.
// terminals is never empty and is in registration order.
type Strategy interface {
	Pick(orgID string, terminals []string) (string, error)
}

// FirstRegistered always routes to the earliest registered terminal.
type FirstRegistered struct{}

func (FirstRegistered) Pick(_ string, terminals []string) (string, error) {
	return terminals[0], nil
}

// RoundRobin cycles through an organization's terminals.
type RoundRobin struct {
	mu   sync.Mutex
	next map[string]int
}

func NewRoundRobin() *RoundRobin {
	return &RoundRobin{next: make(map[string]int)}
}

func (s *RoundRobin) Pick(orgID string, terminals []string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.next[orgID] % len(terminals)
	s.next[orgID] = i + 1
	return terminals[i], nil
}

// StrategyByName maps a configuration value to a Strategy.
func StrategyByName(name string) Strategy {
	switch name {
	case "round-robin":
		return NewRoundRobin()
	default:
		return FirstRegistered{}
	}
}
