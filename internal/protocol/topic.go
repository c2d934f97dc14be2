package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// Event kinds carried in the last segment of an inbound topic.
const (
	KindRecognition = "Rec"
	KindAck         = "Ack"
)

var ErrMalformedTopic = errors.New("malformed topic")

// Scheme describes the terminal topic layout. Commands go to
// {Prefix}/{terminal}; terminals publish on {Prefix}/{terminal}/{kind}.
type Scheme struct {
	Prefix string

	// TerminalIndex is the position of the terminal ID among the
	// slash-separated segments of an inbound topic.
	TerminalIndex int
}

// DefaultScheme is the layout the face terminals ship with.
func DefaultScheme() Scheme {
	return Scheme{Prefix: "mqtt/face", TerminalIndex: 2}
}

// CommandTopic returns the topic a terminal listens on for commands.
func (s Scheme) CommandTopic(terminalID string) string {
	return s.Prefix + "/" + terminalID
}

// Validate checks that the terminal segment sits after the prefix.
func (s Scheme) Validate() error {
	if s.Prefix == "" {
		return errors.New("topic prefix is required")
	}
	if n := len(strings.Split(s.Prefix, "/")); s.TerminalIndex < n {
		return fmt.Errorf("terminal index %d falls inside topic prefix %q (%d segments)", s.TerminalIndex, s.Prefix, n)
	}
	return nil
}

// Subscription returns the wildcard filter matching every inbound event:
// the prefix, a single-level wildcard for each segment up to and including
// the terminal, then one for the event kind.
func (s Scheme) Subscription() string {
	segments := strings.Split(s.Prefix, "/")
	for len(segments) <= s.TerminalIndex {
		segments = append(segments, "+")
	}
	return strings.Join(append(segments, "+"), "/")
}

// Parse extracts the terminal ID and event kind from an inbound topic.
func (s Scheme) Parse(topic string) (terminalID, kind string, err error) {
	segments := strings.Split(topic, "/")
	if len(segments) <= s.TerminalIndex || s.TerminalIndex == len(segments)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrMalformedTopic, topic)
	}

	terminalID = segments[s.TerminalIndex]
	if terminalID == "" {
		return "", "", fmt.Errorf("%w: empty terminal segment in %q", ErrMalformedTopic, topic)
	}

	return terminalID, segments[len(segments)-1], nil
}
