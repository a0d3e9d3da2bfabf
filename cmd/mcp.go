package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/theapemachine/mcgraph/pkg/tools"
)

var (
	transportFlag string

	mcpCmd = &cobra.Command{
		Use:   "mcp",
		Short: "Serve the model card tools over MCP",
		Long:  longMCP,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApplication(cmd.Context())

			if err != nil {
				return err
			}

			defer app.close(context.Background())

			srv := tools.NewServer(version, tools.NewModelCardTools(app.ingester, app.reconstructor))

			transport := viper.GetString("mcp.transport")

			if cmd.Flags().Changed("transport") {
				transport = transportFlag
			}

			switch transport {
			case "", "stdio":
				return server.ServeStdio(srv)
			case "sse":
				addr := listenAddress(cmd, "mcp")
				log.Info("MCP server listening", "addr", addr)

				if err := server.NewSSEServer(srv).Start(addr); err != nil {
					log.Error("failed to start sse server", "error", err)
					return err
				}

				return nil
			}

			return fmt.Errorf("unsupported mcp transport: %s", transport)
		},
	}
)

func init() {
	rootCmd.AddCommand(mcpCmd)

	mcpCmd.Flags().StringVarP(&transportFlag, "transport", "t", "stdio", "stdio or sse")
	mcpCmd.Flags().IntVarP(&portFlag, "port", "p", 0, "Port for the sse transport (default mcp.port)")
	mcpCmd.Flags().StringVarP(&hostFlag, "host", "H", "", "Host for the sse transport (default mcp.host)")
}

var longMCP = `
Serve the model card tools to MCP clients.

Examples:
  # Serve over stdio for a local client
  mcgraph mcp

  # Serve over server-sent events on port 8050
  mcgraph mcp --transport sse --port 8050
`
