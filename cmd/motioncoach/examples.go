package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/motioncoach/internal/config"
	"github.com/goodtune/motioncoach/internal/storage"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Inspect stored training examples",
	Long:  `List or clear the training examples kept by a durable storage backend.`,
}

var examplesListCmd = &cobra.Command{
	Use:   "list [MOVEMENT]",
	Short: "List movements, or the examples of one movement",
	Example: `  motioncoach examples list
  motioncoach -c motioncoach.yaml examples list squat`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExamplesList,
}

var examplesClearCmd = &cobra.Command{
	Use:   "clear MOVEMENT",
	Short: "Delete every example of a movement",
	Args:  cobra.ExactArgs(1),
	RunE:  runExamplesClear,
}

func init() {
	examplesCmd.AddCommand(examplesListCmd)
	examplesCmd.AddCommand(examplesClearCmd)
	rootCmd.AddCommand(examplesCmd)
}

// openConfiguredStorage loads configuration and opens the storage backend it
// names, warning when that backend keeps nothing between runs.
func openConfiguredStorage() (storage.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log.Logger = setupLogger(cfg.Logging, os.Stderr)

	if cfg.Storage.Type == "memory" {
		yellow := color.New(color.FgYellow)
		_, _ = yellow.Fprintln(os.Stderr, "storage.type is memory; nothing is kept between runs")
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return store, nil
}

func runExamplesList(cmd *cobra.Command, args []string) error {
	store, err := openConfiguredStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen)

	if len(args) == 0 {
		movements, err := store.Examples().Movements(ctx)
		if err != nil {
			return fmt.Errorf("failed to list movements: %w", err)
		}
		if len(movements) == 0 {
			fmt.Println("No training examples stored.")
			return nil
		}

		_, _ = cyan.Println("MOVEMENT         EXAMPLES  REPS")
		for _, m := range movements {
			examples, err := store.Examples().List(ctx, m)
			if err != nil {
				return fmt.Errorf("failed to list %s examples: %w", m, err)
			}
			reps := 0
			for _, ex := range examples {
				reps += ex.RepCount
			}
			fmt.Printf("%-16s %8d  %4d\n", m, len(examples), reps)
		}
		return nil
	}

	movement := args[0]
	examples, err := store.Examples().List(ctx, movement)
	if err != nil {
		return fmt.Errorf("failed to list %s examples: %w", movement, err)
	}
	if len(examples) == 0 {
		fmt.Printf("No training examples stored for %s.\n", movement)
		return nil
	}

	_, _ = cyan.Printf("%s (%d examples)\n", movement, len(examples))
	for i, ex := range examples {
		fmt.Printf("  %2d. %s  reps %-3d duration %-8s samples %-6d %s\n",
			i+1,
			green.Sprint(ex.ID),
			ex.RepCount,
			ex.Output.Duration().Round(10 * time.Millisecond),
			len(ex.Output.Samples),
			ex.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runExamplesClear(cmd *cobra.Command, args []string) error {
	store, err := openConfiguredStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	movement := args[0]
	deleted, err := store.Examples().Clear(context.Background(), movement)
	if err != nil {
		return fmt.Errorf("failed to clear %s examples: %w", movement, err)
	}

	green := color.New(color.FgGreen, color.Bold)
	_, _ = green.Printf("Deleted %d example(s) for %s\n", deleted, movement)
	return nil
}
