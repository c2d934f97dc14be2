// Package api holds the JSON bodies exchanged by the HTTP server and its
// client.
package api

type TerminalRequest struct {
	TerminalID string `json:"terminalId"`
}

type TerminalsResponse struct {
	OrgID     string   `json:"orgId"`
	Terminals []string `json:"terminals"`
}

// PersonRequest is a face registration. ImageURL must be reachable by the
// terminal.
type PersonRequest struct {
	UserID   string `json:"userId"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

type AddPersonResponse struct {
	Success bool `json:"success"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	Outstanding int    `json:"outstanding"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
