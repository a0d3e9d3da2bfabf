package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/theapemachine/mcgraph/pkg/service"
)

var (
	portFlag int
	hostFlag string

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Serve the model card REST API",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApplication(ctx)

			if err != nil {
				return err
			}

			defer app.close(context.Background())

			srv := service.NewModelCardServer(app.store, app.ingester, app.reconstructor)
			srv.ExposeMetrics(app.metrics)

			go func() {
				<-ctx.Done()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := srv.Shutdown(shutdownCtx); err != nil {
					log.Error("failed to shut down REST server", "error", err)
				}
			}()

			return srv.Start(listenAddress(cmd, "server"))
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Port to serve on (default server.port)")
	serveCmd.Flags().StringVarP(&hostFlag, "host", "H", "", "Host address to bind to (default server.host)")
}

/*
listenAddress prefers the command flags over the section's host and port keys.
*/
func listenAddress(cmd *cobra.Command, section string) string {
	v := viper.GetViper()
	host := v.GetString(section + ".host")
	port := v.GetInt(section + ".port")

	if cmd.Flags().Changed("host") {
		host = hostFlag
	}

	if cmd.Flags().Changed("port") {
		port = portFlag
	}

	return fmt.Sprintf("%s:%d", host, port)
}

var longServe = `
Serve the model card REST API.

Examples:
  # Serve on the configured host and port
  mcgraph serve

  # Serve on port 8080
  mcgraph serve --port 8080
`
