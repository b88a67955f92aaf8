package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/crisisfeed/internal/model"
	"github.com/ppiankov/crisisfeed/internal/pipeline"
)

// queryFlags are shared by the updates and posts commands
type queryFlags struct {
	tags        []string
	location    string
	description string
	sources     []string
	maxResults  int
	window      int
	format      string
	publish     bool
	explain     bool
	timeout     time.Duration
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVar(&f.tags, "tags", nil, "disaster tags, e.g. flood,hurricane")
	cmd.Flags().StringVar(&f.location, "location", "", "location name, e.g. \"Houston, TX\"")
	cmd.Flags().StringVar(&f.description, "description", "", "free-text description of the disaster")
	cmd.Flags().StringSliceVar(&f.sources, "sources", nil, "source tokens to query (default: every enabled source)")
	cmd.Flags().IntVar(&f.maxResults, "max-results", 0, "maximum records to return (0 = configured default)")
	cmd.Flags().IntVar(&f.window, "window", 0, "time window in hours (0 = configured default)")
	cmd.Flags().StringVar(&f.format, "format", "text", "output format (text, json)")
	cmd.Flags().BoolVar(&f.publish, "publish", false, "publish the result to the configured Kafka topic")
	cmd.Flags().BoolVar(&f.explain, "explain", false, "include the matched classification rule and score terms of each record")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 2*time.Minute, "overall timeout")
}

func (f *queryFlags) request() (model.DisasterContext, pipeline.Options, error) {
	dctx := model.DisasterContext{
		Tags:         f.tags,
		LocationName: f.location,
		Description:  f.description,
	}
	if len(dctx.NormalizedTags()) == 0 && strings.TrimSpace(f.location) == "" {
		return dctx, pipeline.Options{}, fmt.Errorf("at least one of --tags or --location is required")
	}
	if f.maxResults < 0 || f.window < 0 {
		return dctx, pipeline.Options{}, fmt.Errorf("--max-results and --window must not be negative")
	}
	if f.format != "text" && f.format != "json" {
		return dctx, pipeline.Options{}, fmt.Errorf("unknown format %q (valid: text, json)", f.format)
	}
	return dctx, pipeline.Options{
		Sources:         f.sources,
		MaxResults:      f.maxResults,
		TimeWindowHours: f.window,
	}, nil
}

var (
	updatesFlags queryFlags
	postsFlags   queryFlags
)

// updatesCmd represents the updates command
var updatesCmd = &cobra.Command{
	Use:   "updates",
	Short: "Aggregate official disaster updates",
	Long: `Query official sources (NWS, FEMA, ReliefWeb, Red Cross, configured scrape
sources) concurrently, then normalize, filter, deduplicate and rank the results.

Example:
  crisisfeed updates --tags flood --location "Houston, TX"
  crisisfeed updates --tags hurricane --sources nws,fema --max-results 10 --format json
  crisisfeed updates --tags flood --location "Houston, TX" --explain`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, &updatesFlags, func(ctx context.Context, svc *pipeline.Service, dctx model.DisasterContext, opts pipeline.Options) (any, error) {
			res, err := svc.AggregateUpdates(ctx, dctx, opts)
			if err != nil {
				return nil, err
			}
			if updatesFlags.explain {
				return svc.Updates.Explain(dctx, res), nil
			}
			return res, nil
		})
	},
}

// postsCmd represents the posts command
var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Aggregate social media posts",
	Long: `Query social platforms (Bluesky, X) concurrently, then normalize, classify,
filter, deduplicate and rank the results.

Example:
  crisisfeed posts --tags flood --location "Houston, TX"
  crisisfeed posts --tags wildfire --sources bluesky --window 6`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runQuery(cmd, &postsFlags, func(ctx context.Context, svc *pipeline.Service, dctx model.DisasterContext, opts pipeline.Options) (any, error) {
			res, err := svc.AggregatePosts(ctx, dctx, opts)
			if err != nil {
				return nil, err
			}
			if postsFlags.explain {
				return svc.Posts.Explain(dctx, res), nil
			}
			return res, nil
		})
	},
}

func init() {
	rootCmd.AddCommand(updatesCmd)
	rootCmd.AddCommand(postsCmd)

	updatesFlags.register(updatesCmd)
	postsFlags.register(postsCmd)
}

type queryFunc func(ctx context.Context, svc *pipeline.Service, dctx model.DisasterContext, opts pipeline.Options) (any, error)

func runQuery(cmd *cobra.Command, f *queryFlags, query queryFunc) error {
	dctx, opts, err := f.request()
	if err != nil {
		return err
	}

	env, err := newRuntime(false, f.publish)
	if err != nil {
		return err
	}
	defer func() { _ = env.svc.Close() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), f.timeout)
	defer cancel()

	start := time.Now()
	result, err := query(ctx, env.svc, dctx, opts)
	if err != nil {
		return err
	}
	env.logger.Debug("aggregation finished", "duration", time.Since(start))

	if f.format == "json" {
		return writeResultJSON(cmd.OutOrStdout(), result)
	}
	return writeResultText(cmd.OutOrStdout(), result)
}

func writeResultJSON(w io.Writer, result any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func writeResultText(w io.Writer, result any) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	var explanations []pipeline.Explanation
	switch res := result.(type) {
	case pipeline.Explained[model.Update]:
		result, explanations = res.Result, res.Explanations
	case pipeline.Explained[model.Post]:
		result, explanations = res.Result, res.Explanations
	}

	switch res := result.(type) {
	case pipeline.Result[model.Update]:
		fmt.Fprintf(tw, "SCORE\tSOURCE\tTYPE\tPUBLISHED\tTITLE\n")
		for _, u := range res.Records {
			fmt.Fprintf(tw, "%.2f\t%s\t%s\t%s\t%s\n",
				u.RelevanceScore, sourceLabel(u.Source, u.Synthetic), u.UpdateType, formatTime(u.PublishedAt), truncate(u.Title, 80))
		}
		fmt.Fprintf(tw, "\n%d updates%s\n", len(res.Records), cachedSuffix(res.FromCache))
	case pipeline.Result[model.Post]:
		fmt.Fprintf(tw, "SCORE\tPLATFORM\tCLASS\tURGENT\tAUTHOR\tCONTENT\n")
		for _, p := range res.Records {
			fmt.Fprintf(tw, "%.2f\t%s\t%s\t%t\t%s\t%s\n",
				p.RelevanceScore, p.Platform, p.Classification, p.IsUrgent, p.Author, truncate(p.Content, 80))
		}
		fmt.Fprintf(tw, "\n%d posts%s\n", len(res.Records), cachedSuffix(res.FromCache))
	default:
		return fmt.Errorf("unexpected result type %T", result)
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	writeExplanations(w, explanations)
	return nil
}

func writeExplanations(w io.Writer, explanations []pipeline.Explanation) {
	if len(explanations) == 0 {
		return
	}
	fmt.Fprintln(w)
	for i, e := range explanations {
		rule := e.Rule
		if rule == "" {
			rule = "default"
		}
		terms := make([]string, 0, len(e.Score.Components))
		for _, c := range e.Score.Components {
			terms = append(terms, fmt.Sprintf("%s %+.2f (%s)", c.Name, c.Value, c.Formula))
		}
		fmt.Fprintf(w, "#%d rule=%s score=%.2f: %s\n", i+1, rule, e.Score.Total, strings.Join(terms, ", "))
	}
}

func sourceLabel(source string, synthetic bool) string {
	if synthetic {
		return source + " (synthetic)"
	}
	return source
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func cachedSuffix(fromCache bool) string {
	if fromCache {
		return " (cached)"
	}
	return ""
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
