package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/crisisfeed/internal/model"
	"github.com/ppiankov/crisisfeed/internal/pipeline"
	"github.com/ppiankov/crisisfeed/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
	batchPublish bool
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Aggregate many disaster contexts from a file in parallel",
	Long: `Batch runs one aggregation per item of a YAML file concurrently and writes
one JSON file per item.

File format:
  items:
    - name: houston-flood
      kind: update
      tags: [flood]
      location_name: Houston, TX
    - name: houston-posts
      kind: post
      tags: [flood]
      location_name: Houston, TX
      sources: [bluesky]
      max_results: 20

Example:
  crisisfeed batch contexts.yaml
  crisisfeed batch contexts.yaml --concurrency 8 --output-dir ./results`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent items (0 = concurrency.batch_workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./crisisfeed-results", "output directory for results")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchPublish, "publish", false, "publish every result to the configured Kafka topic")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]

	env, err := newRuntime(false, batchPublish)
	if err != nil {
		return err
	}
	defer func() { _ = env.svc.Close() }()

	workers := concurrency
	if workers <= 0 {
		workers = env.cfg.Concurrency.BatchWorkers
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	processor := worker.NewBatchProcessor(batchRunner(env.svc), workers)
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	successCount, failureCount := 0, 0
	for i, result := range results {
		name := itemName(result.Item, i)
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", name, result.Error)
			continue
		}

		path := filepath.Join(outputDir, sanitizeFilename(name)+".json")
		if err := writeJSONFile(path, result.Output); err != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", name, err)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s -> %s\n", name, path)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d items\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 && successCount == 0 {
		return fmt.Errorf("all %d items failed", failureCount)
	}
	return nil
}

// batchRunner dispatches each item to the pipeline matching its kind
func batchRunner(svc *pipeline.Service) worker.Runner {
	return func(ctx context.Context, item worker.BatchItem) (any, error) {
		opts := pipeline.Options{
			Sources:         item.Sources,
			MaxResults:      item.MaxResults,
			TimeWindowHours: item.TimeWindowHours,
		}

		switch item.Kind {
		case model.KindUpdate, "":
			return svc.AggregateUpdates(ctx, item.Context, opts)
		case model.KindPost:
			return svc.AggregatePosts(ctx, item.Context, opts)
		default:
			return nil, fmt.Errorf("unknown kind %q (valid: update, post)", item.Kind)
		}
	}
}

func itemName(item worker.BatchItem, index int) string {
	if item.Name != "" {
		return item.Name
	}
	return "item-" + strconv.Itoa(index+1)
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// sanitizeFilename sanitizes a string for use as a filename
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
	)
	s = replacer.Replace(strings.TrimSpace(s))
	if s == "" || s == "." || s == ".." {
		s = "item"
	}

	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
