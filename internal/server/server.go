package server

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/wolfeidau/faceterm/internal/api"
	httpmiddleware "github.com/wolfeidau/faceterm/internal/http"
)

// Coordinator is the part of coordinator.Coordinator the API drives.
type Coordinator interface {
	AddTerminal(ctx context.Context, orgID, terminalID string) error
	RemoveTerminal(ctx context.Context, orgID, terminalID string) error
	ReplaceTerminal(ctx context.Context, orgID, oldID, newID string) error
	Terminals(orgID string) []string
	Register(ctx context.Context, orgID, userID, name, imageURI string) error
	AddPerson(ctx context.Context, orgID, userID, name, imageURI string) (bool, error)
	Outstanding() int
}

// Server exposes terminal management and face registration over HTTP.
type Server struct {
	coordinator Coordinator
	version     string
}

// NewServer creates a server backed by c.
func NewServer(c Coordinator, version string) *Server {
	return &Server{
		coordinator: c,
		version:     version,
	}
}

// Handler returns the HTTP handler for the server. CORS is only enabled
// when corsOrigins is non-empty.
func (s *Server) Handler(log zerolog.Logger, corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		httpmiddleware.ClientIPMiddleware(),
		httpmiddleware.RequestLogger(log),
		middleware.Recoverer,
	)
	if len(corsOrigins) > 0 {
		r.Use(httpmiddleware.CORS(corsOrigins))
	}

	// Health check endpoint for load balancer
	r.Get("/healthz", s.health)

	r.Route("/v1/organizations/{org}", func(r chi.Router) {
		r.Route("/terminals", func(r chi.Router) {
			r.Get("/", s.listTerminals)
			r.Post("/", s.addTerminal)
			r.Put("/{terminal}", s.replaceTerminal)
			r.Delete("/{terminal}", s.removeTerminal)
		})
		r.Post("/registrations", s.register)
		r.Post("/persons", s.addPerson)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.HealthResponse{
		Status:      "ok",
		Version:     s.version,
		Outstanding: s.coordinator.Outstanding(),
	})
}
