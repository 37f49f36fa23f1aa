package main

import (
	"github.com/meaningapp/meaning/internal/api"
	"github.com/meaningapp/meaning/internal/config"
	"github.com/meaningapp/meaning/internal/server/endpoints"
)

var serverURL string

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	if serverURL != "" {
		return serverURL
	}
	if cm, err := loadConfig(); err == nil && cm.Get().Client.ServiceURL != "" {
		return cm.Get().Client.ServiceURL
	}
	return "http://localhost:" + config.DefaultPort
}

func init() {
	registry := api.NewRegistry()
	for _, ep := range endpoints.All(endpoints.Config{}) {
		registry.Register(ep)
	}
	apiCmd := registry.BuildCommands(getServerURL)

	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "", "Server URL (default: client.service_url)",
	)

	rootCmd.AddCommand(apiCmd)
}
