// Package cli holds the intakectl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kirillkom/legal-intake/internal/core/domain"
	"github.com/kirillkom/legal-intake/internal/core/ports"
)

// Services are the use cases the commands drive.
type Services struct {
	Deadlines     ports.DeadlineService
	Deleter       ports.Deleter
	Documents     ports.DocumentService
	Search        ports.SemanticSearch
	Analytics     ports.AnalyticsService
	DefaultFirmID string
}

// Opener builds the services on demand and returns a release func.
type Opener func(ctx context.Context) (Services, func(), error)

// NewRootCommand builds intakectl. Services are opened once per invocation,
// after flag parsing.
func NewRootCommand(open Opener, version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "intakectl",
		Short:         "Operate the legal intake pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newVersionCommand(version),
		newRefreshRiskCommand(open),
		newDeleteClientCommand(open),
		newAnalyzeCommand(open),
		newStatsCommand(open),
	)
	return root
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("intakectl version %s\n", version)
		},
	}
}

func newRefreshRiskCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-risk",
		Short: "Recompute working days and risk for every open deadline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, open, func(svc Services) error {
				updated, err := svc.Deadlines.RefreshRisk(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{"updated": updated})
			})
		},
	}
}

func newDeleteClientCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete-client <client-id>",
		Short: "Permanently delete a client and everything derived from its documents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || clientID <= 0 {
				return fmt.Errorf("client id must be a positive integer, got %q", args[0])
			}
			if yes, _ := cmd.Flags().GetBool("yes"); !yes {
				return fmt.Errorf("refusing to delete client %d without --yes", clientID)
			}
			return withServices(cmd, open, func(svc Services) error {
				summary, err := svc.Deleter.DeleteClient(cmd.Context(), clientID)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
	cmd.Flags().Bool("yes", false, "confirm the permanent delete")
	return cmd
}

func newAnalyzeCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "analyze <deadline_risk|caseload_health>",
		Short:     "Run a strategic analysis and store the result",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(domain.AnalysisDeadlineRisk), string(domain.AnalysisCaseloadHealth)},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, ok := domain.ParseAnalysisType(args[0])
			if !ok || kind == domain.AnalysisProfitabilityTrends {
				return fmt.Errorf("unsupported analysis type %q", args[0])
			}
			firmID, _ := cmd.Flags().GetString("firm")
			clientID, _ := cmd.Flags().GetInt64("client-id")

			return withServices(cmd, open, func(svc Services) error {
				if firmID == "" {
					firmID = svc.DefaultFirmID
				}
				var (
					analysis *domain.Analysis
					err      error
				)
				if kind == domain.AnalysisDeadlineRisk {
					analysis, err = svc.Analytics.AnalyzeDeadlineRisk(cmd.Context(), firmID, optionalID(clientID))
				} else {
					analysis, err = svc.Analytics.AnalyzeCaseloadHealth(cmd.Context(), firmID)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), analysis)
			})
		},
	}
	cmd.Flags().String("firm", "", "firm id (defaults to DEFAULT_FIRM_ID)")
	cmd.Flags().Int64("client-id", 0, "restrict deadline risk to one client")
	return cmd
}

func newStatsCommand(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print document, deadline and index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			clientID, _ := cmd.Flags().GetInt64("client-id")
			return withServices(cmd, open, func(svc Services) error {
				ctx := cmd.Context()
				documents, err := svc.Documents.Stats(ctx, optionalID(clientID))
				if err != nil {
					return err
				}
				deadlines, err := svc.Deadlines.Stats(ctx, optionalID(clientID))
				if err != nil {
					return err
				}
				index, err := svc.Search.Stats(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"documents": documents,
					"deadlines": deadlines,
					"index":     index,
				})
			})
		},
	}
	cmd.Flags().Int64("client-id", 0, "restrict counts to one client")
	return cmd
}

func withServices(cmd *cobra.Command, open Opener, fn func(Services) error) error {
	svc, release, err := open(cmd.Context())
	if err != nil {
		return fmt.Errorf("open services: %w", err)
	}
	defer release()
	return fn(svc)
}

func optionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
