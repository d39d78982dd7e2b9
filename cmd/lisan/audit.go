package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lisan-ai/lisan/pkg/config"
	"github.com/lisan-ai/lisan/pkg/events"
	"github.com/lisan-ai/lisan/pkg/models"
)

func newAuditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query and manage the local audit event journal",
	}

	cmd.AddCommand(
		newAuditSearchCmd(),
		newAuditShowCmd(),
		newAuditStatsCmd(),
		newAuditCleanupCmd(),
	)
	return cmd
}

func newAuditSearchCmd() *cobra.Command {
	var (
		configPath string
		kind       string
		status     string
		principal  string
		since      string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search journal events",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, cleanup, err := openJournal(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := models.AuditQueryOpts{
				Kind:      models.Kind(kind),
				Status:    models.Status(status),
				Principal: principal,
				Limit:     limit,
			}
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since date (use YYYY-MM-DD): %w", err)
				}
				opts.Since = t
			}

			evs, err := j.Query(context.Background(), opts)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatAuditEvents(evs))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to lisan config file")
	cmd.Flags().StringVar(&kind, "kind", "", "filter by kind (translation|summary)")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (processing|completed|error)")
	cmd.Flags().StringVar(&principal, "principal", "", "filter by authenticated principal")
	cmd.Flags().StringVar(&since, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 50, "max events to return")

	return cmd
}

func newAuditShowCmd() *cobra.Command {
	var (
		configPath string
		requestID  string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the journal events for a request id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requestID == "" {
				return errors.New("--request-id is required")
			}

			j, cleanup, err := openJournal(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			evs, err := j.Query(context.Background(), models.AuditQueryOpts{RequestID: requestID})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(evs) == 0 {
				fmt.Fprintln(out, "No events found for that request ID.")
				return nil
			}
			for i, e := range evs {
				if i > 0 {
					fmt.Fprintln(out)
				}
				writeAuditEvent(out, e)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to lisan config file")
	cmd.Flags().StringVar(&requestID, "request-id", "", "request ID to show")

	return cmd
}

func newAuditStatsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show journal event counts by kind, status and day",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, cleanup, err := openJournal(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			stats, err := j.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), formatAuditStats(stats))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to lisan config file")
	return cmd
}

func newAuditCleanupCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete journal events older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			j, cleanup, err := openJournal(configPath)
			if err != nil {
				return err
			}
			defer cleanup()

			deleted, err := j.Cleanup(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d journal events.\n", deleted)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to lisan config file")
	return cmd
}

func openJournal(configPath string) (*events.Journal, func(), error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	j, err := events.OpenJournal(cfg.Events.JournalPath, cfg.Events.RetentionDays)
	if err != nil {
		return nil, nil, err
	}
	return j, func() { _ = j.Close() }, nil
}

func writeAuditEvent(w io.Writer, e models.AuditEvent) {
	fmt.Fprintf(w, "Event ID:      %s\n", e.EventID)
	fmt.Fprintf(w, "Request ID:    %s\n", e.RequestID)
	fmt.Fprintf(w, "Kind:          %s\n", e.Kind)
	fmt.Fprintf(w, "Principal:     %s\n", e.Principal)
	fmt.Fprintf(w, "Status:        %s\n", e.Status)
	fmt.Fprintf(w, "Cache hit:     %t\n", e.CacheHit)
	fmt.Fprintf(w, "Attempts:      %d\n", e.Attempt)
	fmt.Fprintf(w, "Latency:       %dms\n", e.LatencyMs)
	fmt.Fprintf(w, "Time:          %s\n", e.CreatedAt.Format(time.RFC3339))
	if e.Error != "" {
		fmt.Fprintf(w, "Error:         %s\n", e.Error)
	}
	if len(e.Input) > 0 {
		fmt.Fprintf(w, "\n--- Input ---\n%s\n", e.Input)
	}
	if len(e.Result) > 0 {
		fmt.Fprintf(w, "\n--- Result ---\n%s\n", e.Result)
	}
}

func formatAuditEvents(evs []models.AuditEvent) string {
	if len(evs) == 0 {
		return "No journal events found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-38s %-12s %-10s %-16s %5s %8s %-20s\n",
		"REQUEST ID", "KIND", "STATUS", "PRINCIPAL", "CACHE", "LATENCY", "TIME")
	b.WriteString(strings.Repeat("-", 115) + "\n")
	for _, e := range evs {
		cache := "miss"
		if e.CacheHit {
			cache = "hit"
		}
		fmt.Fprintf(&b, "%-38s %-12s %-10s %-16s %5s %6dms %-20s\n",
			e.RequestID, e.Kind, e.Status, e.Principal, cache,
			e.LatencyMs, e.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func formatAuditStats(stats []models.AuditStat) string {
	if len(stats) == 0 {
		return "No journal stats found.\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-12s %-11s %-12s %8s\n", "KIND", "STATUS", "DAY", "COUNT")
	b.WriteString(strings.Repeat("-", 46) + "\n")
	for _, s := range stats {
		fmt.Fprintf(&b, "%-12s %-11s %-12s %8d\n", s.Kind, s.Status, s.Day, s.Count)
	}
	return b.String()
}
