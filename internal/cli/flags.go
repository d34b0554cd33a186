package cli

import (
	"github.com/spf13/cobra"

	"github.com/hupe1980/devloop/internal/config"
)

// registerServerFlags adds the dev server and account flags to a cobra
// command. The flags are bound into config.Config by name.
func registerServerFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("port", config.DefaultPort, "dev server port")
	f.String("account", "", "target account name or ID")
	f.String("upload-url", "", "project upload API base URL (empty archives into --build-dir)")
	f.String("build-dir", "", "directory for local upload archives")
	f.Duration("shutdown-timeout", config.DefaultShutdownTimeout, "dev server drain timeout per restart")
}

// registerOutputFlag adds the standard --output flag to a cobra command.
func registerOutputFlag(cmd *cobra.Command, format *string) {
	cmd.Flags().StringVarP(format, "output", "o", "table", "output format: table, json, yaml")
}
