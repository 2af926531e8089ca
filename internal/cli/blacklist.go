package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ignite/feed-aggregator/internal/domain"
	"github.com/ignite/feed-aggregator/internal/ingest"
	"github.com/ignite/feed-aggregator/internal/service/blacklist"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List blacklisted permalinks",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var checkCmd = &cobra.Command{
	Use:   "check [permalink]",
	Short: "Report whether a permalink is blacklisted",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var addCmd = &cobra.Command{
	Use:   "add [item-id]",
	Short: "Delete a feed item and blacklist its permalink",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

var linkCmd = &cobra.Command{
	Use:   "link [item-id]",
	Short: "Print the admin blacklist link for a feed item",
	Long:  `Prints the row-action link for an item, carrying a token bound to that item. The token expires with the configured nonce lifetime.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runLink,
}

var removeCmd = &cobra.Command{
	Use:   "remove [permalink]",
	Short: "Take a permalink off the blacklist",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

var filterCmd = &cobra.Command{
	Use:   "filter [feed-file]",
	Short: "Dry-run a feed document through the blacklist",
	Long:  `Parses a local RSS, Atom or JSON feed file and prints which items would be imported and which would be skipped.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runFilter,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(filterCmd)

	linkCmd.Flags().Int("page", 0, "listing page to return to after the action")
}

func requireService() error {
	if blacklistService == nil {
		return errors.New("blacklist service not configured")
	}
	return nil
}

func runList(cmd *cobra.Command, _ []string) error {
	if err := requireService(); err != nil {
		return err
	}
	entries, err := blacklistService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list blacklist: %w", err)
	}

	if len(entries) == 0 {
		cmd.Println("Blacklist is empty")
		return nil
	}
	for _, e := range entries {
		cmd.Printf("  %s\n", e.Identity)
		if e.Label != "" {
			cmd.Printf("    Title: %s\n", e.Label)
		}
	}
	cmd.Printf("\nTotal: %d entries\n", len(entries))
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := requireService(); err != nil {
		return err
	}
	blocked, err := blacklistService.Contains(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to check permalink: %w", err)
	}
	if blocked {
		cmd.Printf("%s is blacklisted\n", domain.NormalizePermalink(args[0]))
	} else {
		cmd.Printf("%s is not blacklisted\n", domain.NormalizePermalink(args[0]))
	}
	return nil
}

func validateItem(cmd *cobra.Command, rawID string) (*domain.FeedItem, error) {
	if commandService == nil {
		return nil, errors.New("blacklist command not configured")
	}
	item, err := commandService.Validate(cmd.Context(), rawID)
	switch {
	case errors.Is(err, blacklist.ErrNotFound):
		return nil, fmt.Errorf("item %s does not exist", rawID)
	case errors.Is(err, blacklist.ErrWrongKind):
		return nil, fmt.Errorf("item %s is not a feed item", rawID)
	case err != nil:
		return nil, err
	}
	return item, nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	item, err := validateItem(cmd, args[0])
	if err != nil {
		return err
	}

	err = commandService.Execute(cmd.Context(), item)
	if errors.Is(err, blacklist.ErrInvalidPermalink) {
		return fmt.Errorf("item %d has a permalink that is not valid UTF-8", item.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to blacklist item %d: %w", item.ID, err)
	}
	cmd.Printf("Blacklisted %q (%s)\n", item.Title, domain.NormalizePermalink(item.Permalink))
	return nil
}

func runLink(cmd *cobra.Command, args []string) error {
	item, err := validateItem(cmd, args[0])
	if err != nil {
		return err
	}
	page, _ := cmd.Flags().GetInt("page")

	link, err := commandService.ActionURL(item.ID, domain.Pagination{Page: page})
	if err != nil {
		return fmt.Errorf("failed to build link for item %d: %w", item.ID, err)
	}
	cmd.Println(link)
	return nil
}

func runRemove(cmd *cobra.Command, args []string) error {
	if err := requireService(); err != nil {
		return err
	}
	err := blacklistService.Remove(cmd.Context(), args[0])
	if errors.Is(err, blacklist.ErrNotFound) {
		return fmt.Errorf("%s is not blacklisted", domain.NormalizePermalink(args[0]))
	}
	if err != nil {
		return fmt.Errorf("failed to remove permalink: %w", err)
	}
	cmd.Printf("Removed %s\n", domain.NormalizePermalink(args[0]))
	return nil
}

func runFilter(cmd *cobra.Command, args []string) error {
	if candidateFilter == nil {
		return errors.New("candidate filter not configured")
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	items, err := ingest.ParseCandidates(f)
	if err != nil {
		return err
	}
	res, err := candidateFilter.Partition(cmd.Context(), items)
	if err != nil {
		return fmt.Errorf("failed to filter feed: %w", err)
	}

	for _, c := range res.Admitted {
		cmd.Printf("  import  %s\n", c.Permalink)
	}
	for _, c := range res.Skipped {
		cmd.Printf("  skip    %s\n", c.Permalink)
	}
	cmd.Printf("\n%d to import, %d blacklisted\n", len(res.Admitted), len(res.Skipped))
	return nil
}
