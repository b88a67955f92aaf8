package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/crisisfeed/internal/model"
)

// BatchItem is one aggregation request in a batch file
type BatchItem struct {
	Name            string                `yaml:"name"`
	Context         model.DisasterContext `yaml:",inline"`
	Kind            model.RecordKind      `yaml:"kind"`
	Sources         []string              `yaml:"sources,omitempty"`
	MaxResults      int                   `yaml:"max_results,omitempty"`
	TimeWindowHours int                   `yaml:"time_window_hours,omitempty"`
}

// Runner executes one batch item
type Runner func(ctx context.Context, item BatchItem) (any, error)

// BatchJob wraps a batch item for the pool
type BatchJob struct {
	Item BatchItem
	Run  Runner
}

// Execute executes the batch job
func (j *BatchJob) Execute(ctx context.Context) Result {
	output, err := j.Run(ctx, j.Item)
	return &BatchResult{Item: j.Item, Output: output, Error: err}
}

// BatchResult represents the result of a batch job
type BatchResult struct {
	Item   BatchItem `json:"item"`
	Output any       `json:"output,omitempty"`
	Error  error     `json:"-"`
}

// GetError returns the error from the batch result
func (r *BatchResult) GetError() error {
	return r.Error
}

// BatchProcessor runs many disaster contexts concurrently
type BatchProcessor struct {
	run         Runner
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(run Runner, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		run:         run,
		concurrency: concurrency,
	}
}

// ProcessItems runs every item and returns results in input order
func (b *BatchProcessor) ProcessItems(ctx context.Context, items []BatchItem) []*BatchResult {
	if len(items) == 0 {
		return []*BatchResult{}
	}

	jobs := make([]Job, len(items))
	for i, item := range items {
		jobs[i] = &BatchJob{Item: item, Run: b.run}
	}

	results := NewPool(ctx, b.concurrency).Run(jobs)

	batchResults := make([]*BatchResult, len(results))
	for i, result := range results {
		batchResults[i] = result.(*BatchResult)
	}
	return batchResults
}

// ProcessFile reads items from a YAML file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*BatchResult, error) {
	items, err := ReadItemsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}

	return b.ProcessItems(ctx, items), nil
}

type batchFile struct {
	Items []BatchItem `yaml:"items"`
}

// ReadItemsFromFile reads a YAML batch file. Items default to kind "update";
// duplicates (same kind and context) are dropped.
func ReadItemsFromFile(filePath string) ([]BatchItem, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	var file batchFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	var items []BatchItem
	seen := make(map[string]bool)
	for i, item := range file.Items {
		if len(item.Context.Tags) == 0 && strings.TrimSpace(item.Context.LocationName) == "" {
			return nil, fmt.Errorf("item %d: %w", i+1, errEmptyItem)
		}
		if item.Kind == "" {
			item.Kind = model.KindUpdate
		}
		if item.Kind != model.KindUpdate && item.Kind != model.KindPost {
			return nil, fmt.Errorf("item %d: unknown kind %q", i+1, item.Kind)
		}
		if item.Name == "" {
			item.Name = fmt.Sprintf("%s %s", item.Context.PrimaryTag(), item.Context.LocationName)
		}

		key := string(item.Kind) + "|" + item.Context.Fingerprint() + "|" + strings.Join(item.Sources, ",")
		if !seen[key] {
			seen[key] = true
			items = append(items, item)
		}
	}

	return items, nil
}

var errEmptyItem = errors.New("needs tags or a location")
