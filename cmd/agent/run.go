package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"revi/agent-core/agent"

	"github.com/spf13/cobra"
)

// newRunCmd starts a demo monitor against a config file and exercises the
// capture surface until interrupted. Useful for watching the pipeline work
// against a local devserver.
func newRunCmd() *cobra.Command {
	var configPath string
	var apiURL string
	var apiKey string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a demo monitor that emits synthetic telemetry",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := agent.Options{
				ApiKey:      apiKey,
				ApiUrl:      apiURL,
				Environment: "development",
				Debug:       true,
				ConfigPath:  configPath,
			}
			m := agent.Init(opts)
			defer m.Destroy()

			m.SetUserContext(agent.UserContext{ID: "demo-user"})
			m.SetOnline(true)

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()

			fmt.Printf("demo monitor running, session %s\n", m.GetSessionID())
			i := 0
			for {
				select {
				case <-quit:
					ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					return m.Flush(ctx)
				case <-ticker.C:
					i++
					m.AddBreadcrumb(agent.Breadcrumb{
						Category: agent.CategoryUI,
						Level:    "info",
						Message:  fmt.Sprintf("demo tick %d", i),
					})
					if i%3 == 0 {
						m.CaptureException(errors.New("demo: synthetic failure"), agent.EventOptions{
							Level: agent.LevelWarning,
							Tags:  map[string]string{"demo": "true"},
						})
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML agent config")
	cmd.Flags().StringVar(&apiURL, "api-url", "http://localhost:8787", "ingestion base URL")
	cmd.Flags().StringVar(&apiKey, "api-key", "dev-key", "project API key")
	return cmd
}
