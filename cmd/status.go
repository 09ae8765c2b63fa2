package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/AndreyRyab/mama-talk/internal/config"
	"github.com/AndreyRyab/mama-talk/internal/dns"
	"github.com/AndreyRyab/mama-talk/internal/server"
	"github.com/AndreyRyab/mama-talk/internal/ui"
)

var (
	flagStatusServer string
	flagStatusJSON   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the health of a relay",
	Long: `Query a relay's /health endpoint and show its room and connection counts.

Examples:
  mama-talk status
  mama-talk status --server https://mama-talk.onrender.com
  mama-talk status --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.Options{ServerURL: flagStatusServer})
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		health, latency, err := fetchHealth(ctx, newHTTPClient(), cfg.ServerURL)
		if err != nil {
			return err
		}

		if flagStatusJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(health)
		}

		fmt.Fprintln(cmd.OutOrStdout(), ui.HealthView(ui.HealthSummary{
			Server:      cfg.ServerURL,
			Status:      health.Status,
			Environment: health.Environment,
			Version:     health.Version,
			Rooms:       health.Rooms,
			Connections: health.Connections,
			Users:       health.Users,
			Timestamp:   health.Timestamp,
			Latency:     latency,
		}))
		return nil
	},
}

func newHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dns.NewResolver().DialContext
	return &http.Client{Transport: transport}
}

func fetchHealth(ctx context.Context, client *http.Client, serverURL string) (*server.Health, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, serverURL+"/health", nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("reach %s: %w", serverURL, err)
	}
	defer resp.Body.Close()
	latency := time.Since(start)

	if resp.StatusCode != http.StatusOK {
		return nil, latency, fmt.Errorf("health check failed: %s", resp.Status)
	}

	var h server.Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, latency, fmt.Errorf("decode health: %w", err)
	}
	return &h, latency, nil
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&flagStatusServer, "server", "", "Relay URL (default $MAMA_TALK_SERVER or http://localhost:3000)")
	statusCmd.Flags().BoolVar(&flagStatusJSON, "json", false, "Print the raw health report")
}
