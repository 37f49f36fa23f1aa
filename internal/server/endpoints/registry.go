package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/meaningapp/meaning/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	// DocumentRoot overrides extract.root from the config manager.
	DocumentRoot string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health endpoints
		&HealthEndpoint{},
		&StatusEndpoint{},

		// Extraction
		&ParseEndpoint{DocumentRoot: cfg.DocumentRoot},

		// Note endpoints
		&ListNotesEndpoint{},
		&CreateNoteEndpoint{},
		&UpdateNoteEndpoint{},
		&DeleteNoteEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{},
	}
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
