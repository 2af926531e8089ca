// Package cli implements the blacklistctl admin commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/ignite/feed-aggregator/internal/ingest"
	"github.com/ignite/feed-aggregator/internal/service/blacklist"
)

// Services used by the commands. Set by Configure before Execute.
var (
	blacklistService *blacklist.Service
	commandService   *blacklist.Command
	candidateFilter  *ingest.Filter
)

var rootCmd = &cobra.Command{
	Use:   "blacklistctl",
	Short: "Manage the feed item blacklist",
	Long: `blacklistctl inspects and edits the feed item blacklist that the
ingestion pipeline consults before importing items.`,
	SilenceUsage: true,
}

// Configure injects the services the commands operate on.
func Configure(svc *blacklist.Service, cmd *blacklist.Command, filter *ingest.Filter) {
	blacklistService = svc
	commandService = cmd
	candidateFilter = filter
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
