package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"revi/agent-core/internal/modules/transport"
	"revi/agent-core/internal/pkg/uid"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
)

// newDevServerCmd runs a local ingestion stub implementing the capture
// endpoints. It accepts raw or gzip bodies and answers the acceptance
// envelope, which makes it a drop-in target for `agent run` and e2e tests.
func newDevServerCmd() *cobra.Command {
	var port int
	var apiKey string

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local ingestion stub for development",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fiber.New(fiber.Config{
				AppName:      "revi-devserver",
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 10 * time.Second,
			})

			handler := func(listKey string) fiber.Handler {
				return func(c *fiber.Ctx) error {
					if apiKey != "" && c.Get("X-API-Key") != apiKey {
						return c.Status(fiber.StatusUnauthorized).JSON(transport.Response{
							Success: false,
							Message: "missing or invalid API key",
						})
					}

					body, err := transport.Decode(c.Body(), c.Get("Content-Encoding"))
					if err != nil {
						return c.Status(fiber.StatusBadRequest).JSON(transport.Response{
							Success: false,
							Message: "undecodable body",
						})
					}

					var batch map[string]any
					if err := json.Unmarshal(body, &batch); err != nil {
						return c.Status(fiber.StatusBadRequest).JSON(transport.Response{
							Success: false,
							Message: "malformed batch",
						})
					}

					count := 1
					if list, ok := batch[listKey].([]any); ok {
						count = len(list)
					}
					ids := make([]string, count)
					for i := range ids {
						ids[i] = uid.NewEventID()
					}

					fmt.Printf("%s %s accepted %d event(s), sync_session=%q\n",
						time.Now().Format(time.TimeOnly), c.Path(), count, c.Get("X-Sync-Session"))
					return c.JSON(transport.Response{Success: true, IDs: ids})
				}
			}

			app.Post(transport.EndpointError, handler("errors"))
			app.Post(transport.EndpointSessionEvent, handler("events"))
			app.Post(transport.EndpointNetworkEvent, handler("events"))
			app.Get("/health", func(c *fiber.Ctx) error {
				return c.JSON(fiber.Map{"status": "UP", "time": time.Now().Format(time.RFC3339)})
			})
			// Probes arrive as HEAD requests against the base URL.
			app.Head("/", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

			quit := make(chan os.Signal, 1)
			signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
			go func() {
				<-quit
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = app.ShutdownWithContext(ctx)
			}()

			return app.Listen(fmt.Sprintf(":%d", port))
		},
	}

	cmd.Flags().IntVar(&port, "port", 8787, "listen port")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "require this X-API-Key (empty accepts all)")
	return cmd
}
