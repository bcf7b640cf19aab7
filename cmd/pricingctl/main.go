package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"rental-quote-backend/internal/domain"
)

var (
	serverAddr string
	adminToken string
	timeout    time.Duration
	jsonOutput bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pricingctl",
		Short:         "Operate the rental quote backend: sync the catalog, inspect and clear caches, request quotes",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&serverAddr, "addr", envOr("PRICING_ADDR", "http://localhost:8080"), "Base URL of the pricing server")
	rootCmd.PersistentFlags().StringVar(&adminToken, "token", os.Getenv("ADMIN_TOKEN"), "Admin bearer token")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Request timeout; a full sync can take a while")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print raw JSON responses")

	rootCmd.AddCommand(
		syncCmd(),
		statusCmd(),
		statsCmd(),
		clearKeyCmd(),
		clearCatalogCmd(),
		clearLocationsCmd(),
		quoteCmd(),
	)
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func client() *adminClient {
	return newAdminClient(serverAddr, adminToken, timeout)
}

func withTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a catalog sync now and wait for it to finish",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withTimeout()
			defer cancel()

			result, err := client().TriggerSync(ctx)
			var apiErr *apiError
			if errors.As(err, &apiErr) && result.Duplicate {
				fmt.Fprintln(cmd.OutOrStdout(), "A sync is already running; trigger dropped")
				return nil
			}
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), result)
			}
			printSyncResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
}

func printSyncResult(w io.Writer, result *domain.SyncResult) {
	fmt.Fprintf(w, "Run %s: %s (%s)\n", result.RunID, result.State, result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))
	names := make([]string, 0, len(result.PerCollection))
	for c := range result.PerCollection {
		names = append(names, string(c))
	}
	sort.Strings(names)

	width := len("Collection")
	for _, n := range names {
		if len(n) > width {
			width = len(n)
		}
	}
	fmt.Fprintf(w, "%-*s  %8s  %7s  %11s  %s\n", width, "Collection", "Upserted", "Deleted", "Quarantined", "Status")
	for _, n := range names {
		cr := result.PerCollection[domain.Collection(n)]
		status := "ok"
		if !cr.Success {
			status = "FAILED " + cr.Error
		}
		fmt.Fprintf(w, "%-*s  %8d  %7d  %11d  %s\n", width, n, cr.Upserted, cr.Deleted, cr.Quarantined, status)
	}
	fmt.Fprintf(w, "Cache written: %t\n", result.CacheWritten)
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the sync state and recent errors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withTimeout()
			defer cancel()

			status, err := client().SyncStatus(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), status)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "State:        %s\n", status.State)
			if status.LastSuccess != nil {
				fmt.Fprintf(w, "Last success: %s\n", status.LastSuccess.Format(time.RFC3339))
			} else {
				fmt.Fprintln(w, "Last success: never")
			}
			if status.LastRunID != "" {
				fmt.Fprintf(w, "Last run:     %s\n", status.LastRunID)
			}
			if len(status.RecentErrors) > 0 {
				fmt.Fprintln(w, "Recent errors:")
				for _, e := range status.RecentErrors {
					fmt.Fprintf(w, "  %s  %-11s %s\n", e.OccurredAt.Format(time.RFC3339), e.Collection, e.Message)
				}
			}
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog cache statistics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withTimeout()
			defer cancel()

			stats, err := client().CacheStats(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), stats)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Hits:         %d\n", stats.Hits)
			fmt.Fprintf(w, "Misses:       %d\n", stats.Misses)
			fmt.Fprintf(w, "Hit ratio:    %.2f%%\n", stats.HitRatio*100)
			fmt.Fprintf(w, "Catalog size: %d bytes\n", stats.CatalogSizeBytes)
			if stats.Fingerprint != "" {
				fmt.Fprintf(w, "Fingerprint:  %s\n", stats.Fingerprint)
			}
			if stats.LastUpdated != nil {
				fmt.Fprintf(w, "Updated:      %s\n", stats.LastUpdated.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func printClear(w io.Writer, result *domain.ClearResult) error {
	if jsonOutput {
		return printJSON(w, result)
	}
	if !result.Found {
		fmt.Fprintln(w, "Nothing to clear")
		return nil
	}
	fmt.Fprintf(w, "Cleared %d\n", result.Cleared)
	for _, k := range result.Keys {
		fmt.Fprintf(w, "  %s\n", k)
	}
	return nil
}

func clearKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-key KEY",
		Short: "Delete one exact cache key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := withTimeout()
			defer cancel()

			result, err := client().ClearKey(ctx, args[0])
			if err != nil {
				return err
			}
			return printClear(cmd.OutOrStdout(), result)
		},
	}
}

func clearCatalogCmd() *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "clear-catalog",
		Short: "Drop the cached catalog; the next quote rebuilds it from the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !confirm {
				return fmt.Errorf("refusing to clear the catalog cache without --confirm")
			}
			ctx, cancel := withTimeout()
			defer cancel()

			result, err := client().ClearCatalog(ctx, confirm)
			if err != nil {
				return err
			}
			return printClear(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm clearing the catalog cache")
	return cmd
}

func clearLocationsCmd() *cobra.Command {
	var pattern string
	cmd := &cobra.Command{
		Use:   "clear-locations",
		Short: "Delete cached distance lookups matching a pattern",
		Long: "Delete cached distance lookups. A plain pattern matches as a substring of the\n" +
			"normalized address; glob characters (* ? [) are honored. An empty pattern clears all.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := withTimeout()
			defer cancel()

			result, err := client().ClearLocations(ctx, pattern)
			if err != nil {
				return err
			}
			return printClear(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&pattern, "pattern", "", "Address pattern to clear")
	return cmd
}

func quoteCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Request a quote from a JSON request file (- for stdin)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var in io.Reader = cmd.InOrStdin()
			if file != "-" {
				f, err := os.Open(file)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			var req domain.QuoteRequest
			if err := json.NewDecoder(in).Decode(&req); err != nil {
				return fmt.Errorf("invalid quote request: %w", err)
			}

			ctx, cancel := withTimeout()
			defer cancel()

			quote, err := client().Quote(ctx, &req)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd.OutOrStdout(), quote)
			}
			printQuote(cmd.OutOrStdout(), quote)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "Quote request JSON file")
	return cmd
}

func printQuote(w io.Writer, q *domain.QuoteResponse) {
	fmt.Fprintf(w, "Quote %s (valid until %s)\n", q.QuoteID, q.Metadata.ValidUntil.Format("2006-01-02"))
	for _, li := range q.Quote.LineItems {
		fmt.Fprintf(w, "  %-50s %10s\n", li.Description, li.Total.StringFixed(2))
	}
	fmt.Fprintf(w, "  %-50s %10s\n", "Subtotal", q.Quote.Subtotal.StringFixed(2))
	if q.IsEstimate {
		fmt.Fprintf(w, "Estimate; missing: %s\n", strings.Join(q.MissingInfo, ", "))
	}
	for _, warn := range q.Metadata.Warnings {
		fmt.Fprintf(w, "Warning [%s]: %s\n", warn.Code, warn.Message)
	}
}
