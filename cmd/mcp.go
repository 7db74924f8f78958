package cmd

import (
	"github.com/mark3labs/mcp-go/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"marksweep/internal/mcptools"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the bookmark tools over MCP on stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		appInstance, err := GetAppFromContext(cmd.Context())
		if err != nil {
			return err
		}
		log.Info("Serving MCP tools on stdio")
		return server.ServeStdio(mcptools.NewServer(appInstance))
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
