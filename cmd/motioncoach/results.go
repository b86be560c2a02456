package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/goodtune/motioncoach/internal/storage"
	"github.com/spf13/cobra"
)

var (
	resultsMovement string
	resultsLimit    int
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "Show the analysis result log",
	Long:  `Show recorded analyses, newest first, from a durable storage backend.`,
	Example: `  motioncoach results --limit 5
  motioncoach results --movement squat`,
	Args: cobra.NoArgs,
	RunE: runResultsList,
}

var resultsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show every result of one analysis",
	Args:  cobra.ExactArgs(1),
	RunE:  runResultsShow,
}

func init() {
	resultsCmd.Flags().StringVar(&resultsMovement, "movement", "", "Only analyses hinted with this movement or matching it")
	resultsCmd.Flags().IntVar(&resultsLimit, "limit", 20, "Maximum number of analyses to show (0 for all)")
	resultsCmd.AddCommand(resultsShowCmd)
	rootCmd.AddCommand(resultsCmd)
}

func runResultsList(cmd *cobra.Command, args []string) error {
	store, err := openConfiguredStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.Results().List(context.Background(), storage.ResultFilter{
		Movement: resultsMovement,
		Limit:    resultsLimit,
	})
	if err != nil {
		return fmt.Errorf("failed to list results: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("No analyses recorded.")
		return nil
	}

	cyan := color.New(color.FgCyan, color.Bold)
	_, _ = cyan.Println("TIME                 ID                                    DEVICE       MODE      REPS  MOVEMENTS")
	for _, rec := range records {
		fmt.Printf("%-20s %-37s %-12s %-9s %4d  %s\n",
			rec.CreatedAt.Format("2006-01-02 15:04:05"),
			rec.ID,
			rec.DeviceID,
			rec.Mode,
			rec.TotalReps(),
			movementSummary(rec))
	}
	return nil
}

func runResultsShow(cmd *cobra.Command, args []string) error {
	store, err := openConfiguredStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	rec, err := store.Results().Get(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get result %s: %w", args[0], err)
	}

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	_, _ = cyan.Printf("Analysis %s\n", rec.ID)
	fmt.Printf("  time:   %s\n", rec.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  device: %s\n", rec.DeviceID)
	fmt.Printf("  output: %s\n", rec.OutputID)
	fmt.Printf("  mode:   %s (hint %q)\n", rec.Mode, rec.Movement)

	if len(rec.Results) == 0 {
		_, _ = yellow.Println("  (no result)")
		return nil
	}
	for _, r := range rec.Results {
		if r.IsResting() {
			_, _ = yellow.Printf("  Resting: %.2fs\n", r.Duration.Seconds())
			continue
		}
		_, _ = green.Printf("  %s\n", r.Movement)
		fmt.Printf("    %d reps, duration %.2fs\n", r.RepCount, r.Duration.Seconds())
		fmt.Printf("    rep time %.2f (%.2f-%.2f), variation %.2f\n",
			r.MeanRepTime.Seconds(), r.MinRepTime.Seconds(), r.MaxRepTime.Seconds(), r.InternalVariation)
		if r.ReferenceVariation != nil {
			fmt.Printf("    ref variation %.2f, ref rep time %.2f\n", *r.ReferenceVariation, r.ReferenceRepTime.Seconds())
		}
	}
	return nil
}

func movementSummary(rec storage.ResultRecord) string {
	if len(rec.Results) == 0 {
		return "-"
	}
	names := make([]string, 0, len(rec.Results))
	for _, r := range rec.Results {
		names = append(names, r.Movement)
	}
	return strings.Join(names, ",")
}
