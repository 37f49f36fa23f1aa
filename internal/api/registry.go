package api

import (
	"net/http"

	"github.com/spf13/cobra"
)

// Registry holds all registered endpoints.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry creates a new endpoint registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an endpoint to the registry.
func (r *Registry) Register(ep Endpoint) {
	r.endpoints = append(r.endpoints, ep)
}

// RegisterRoutes registers all endpoint HTTP routes with the given mux.
// authMiddleware wraps handlers whose endpoint requires a signed-in user.
func (r *Registry) RegisterRoutes(mux *http.ServeMux, authMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		if ep.RequiresAuth() {
			handler = authMiddleware(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}
}

// BuildCommands returns a cobra.Command tree for all registered endpoints.
// getServerURL is called at runtime to get the server URL.
func (r *Registry) BuildCommands(getServerURL func() string) *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Commands that call the running extraction service",
		Long: `API commands call the running meaning service via HTTP.

These commands require a running server (meaning serve).
Use --server to specify a custom server URL and --token (or
MEANING_TOKEN) for the notes commands.

Examples:
  meaning api health                       # Check service health
  meaning api parse --file book.pdf        # Extract text from a local PDF
  meaning api notes list --book moby-dick  # List notes for a book`,
	}

	groups := map[string]*cobra.Command{}
	for _, ep := range r.endpoints {
		cmd := ep.Command(getServerURL)
		if cmd == nil {
			continue
		}
		g, ok := ep.(Grouped)
		if !ok {
			apiCmd.AddCommand(cmd)
			continue
		}
		parent, ok := groups[g.CommandGroup()]
		if !ok {
			parent = &cobra.Command{
				Use:   g.CommandGroup(),
				Short: "Commands for " + g.CommandGroup(),
			}
			groups[g.CommandGroup()] = parent
			apiCmd.AddCommand(parent)
		}
		parent.AddCommand(cmd)
	}

	return apiCmd
}

// Grouped is implemented by endpoints whose command belongs under a
// shared parent command, e.g. "api notes list".
type Grouped interface {
	CommandGroup() string
}

// Endpoints returns all registered endpoints.
func (r *Registry) Endpoints() []Endpoint {
	return r.endpoints
}
