package endpoints

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/meaningapp/meaning/internal/api"
	"github.com/meaningapp/meaning/internal/extract"
	"github.com/meaningapp/meaning/internal/svcctx"
)

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	OK bool `json:"ok"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

var _ api.Endpoint = (*HealthEndpoint)(nil)

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresAuth() bool { return false }

// handler godoc
//
//	@Summary		Health check
//	@Description	Reports that the extraction service is up
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{OK: true})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server    string              `json:"server"`
	Extractor *extract.PoolStatus `json:"extractor,omitempty"`
	Notes     string              `json:"notes"`
	Auth      string              `json:"auth"`
}

// StatusEndpoint handles GET /status.
type StatusEndpoint struct{}

var _ api.Endpoint = (*StatusEndpoint)(nil)

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresAuth() bool { return false }

type pinger interface {
	Ping(ctx context.Context) error
}

// handler godoc
//
//	@Summary		Server status
//	@Description	Extraction pool load and note store readiness
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Router			/status [get]
func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Server: "running"}

	if pool := svcctx.ExtractorFrom(r.Context()); pool != nil {
		status := pool.Status()
		resp.Extractor = &status
	}

	resp.Notes = "not_configured"
	if store := svcctx.NoteStoreFrom(r.Context()); store != nil {
		resp.Notes = "ready"
		if p, ok := store.(pinger); ok {
			if err := p.Ping(r.Context()); err != nil {
				resp.Notes = "unhealthy"
			}
		}
	}

	resp.Auth = "not_configured"
	if svcctx.TokensFrom(r.Context()).Configured() {
		resp.Auth = "configured"
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp StatusResponse
			if err := client.Get(cmd.Context(), "/status", &resp); err != nil {
				return err
			}
			if api.GetOutputFormat() == api.OutputFormatJSON {
				return api.Output(resp)
			}
			fmt.Printf("Server: %s\n", resp.Server)
			if resp.Extractor != nil {
				fmt.Printf("Extractor:\n")
				fmt.Printf("  Workers:   %d\n", resp.Extractor.Workers)
				fmt.Printf("  In flight: %d\n", resp.Extractor.InFlight)
				fmt.Printf("  Queued:    %d/%d\n", resp.Extractor.QueueDepth, resp.Extractor.QueueSize)
			}
			fmt.Printf("Notes: %s\n", resp.Notes)
			fmt.Printf("Auth:  %s\n", resp.Auth)
			return nil
		},
	}
}
