package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	service "github.com/okian/trialeval/internal/app"
	"github.com/okian/trialeval/internal/config"
	"github.com/okian/trialeval/internal/domain/model"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const defaultEvaluateConcurrency = 8

// errNoSubmissions is returned when the patterns match no submission.
var errNoSubmissions = errors.New("no submissions matched")

// fileSubmission is one submission read from a file.
type fileSubmission struct {
	path     string
	envelope model.Envelope
}

// fileOutcome pairs a submission with its evaluation.
type fileOutcome struct {
	Path    string          `json:"path"`
	Outcome service.Outcome `json:"outcome"`
}

type evaluateReport struct {
	Results      []fileOutcome             `json:"results"`
	Progressions []service.ProgressionView `json:"progressions,omitempty"`
}

func newEvaluateCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON      bool
		concurrency int
		worker      string
	)
	cmd := &cobra.Command{
		Use:   "evaluate <pattern>...",
		Short: "Score submission files against the task catalog",
		Long: `Score YAML or JSON submission files without running the server.

Each file holds one submission or a list of them. Patterns support ** globs,
for example "submissions/**/*.yaml". Submissions that name a worker advance
that worker's progression, and a badge summary is printed at the end.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := opts.loadConfig(ctx)
			if err != nil {
				return err
			}
			// Offline scoring never touches a shared store.
			cfg.StoreDriver = config.StoreMemory

			subs, err := readSubmissions(args)
			if err != nil {
				return err
			}
			if worker != "" {
				for i := range subs {
					if subs[i].envelope.WorkerID == "" {
						subs[i].envelope.WorkerID = worker
					}
				}
			}

			log, err := initLogging(ctx, cfg)
			if err != nil {
				return err
			}
			c, err := buildComponents(ctx, cfg, log)
			if err != nil {
				return err
			}
			svc := newService(cfg, c, log)
			if err := svc.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = svc.Stop(context.WithoutCancel(ctx)) }()

			report, err := evaluateAll(ctx, svc, subs, concurrency)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printReport(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	cmd.Flags().IntVar(&concurrency, "concurrency", defaultEvaluateConcurrency, "Submissions evaluated in parallel")
	cmd.Flags().StringVar(&worker, "worker", "", "Worker id for submissions that do not name one")
	return cmd
}

// readSubmissions expands patterns and decodes every matched file.
func readSubmissions(patterns []string) ([]fileSubmission, error) {
	seen := map[string]bool{}
	var paths []string
	for _, p := range patterns {
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", p, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)

	var out []fileSubmission
	for _, path := range paths {
		envs, err := readSubmissionFile(path)
		if err != nil {
			return nil, err
		}
		for _, env := range envs {
			out = append(out, fileSubmission{path: path, envelope: env})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %v", errNoSubmissions, patterns)
	}
	return out, nil
}

// readSubmissionFile decodes one submission or a list of them. JSON is
// read through the YAML decoder.
func readSubmissionFile(path string) ([]model.Envelope, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	doc := &node
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		doc = doc.Content[0]
	}
	if doc.Kind == yaml.SequenceNode {
		var envs []model.Envelope
		if err := doc.Decode(&envs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		return envs, nil
	}
	var env model.Envelope
	if err := doc.Decode(&env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return []model.Envelope{env}, nil
}

// evaluateAll scores subs in parallel, keeping input order in the report.
func evaluateAll(ctx context.Context, svc *service.Service, subs []fileSubmission, concurrency int) (*evaluateReport, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]fileOutcome, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, s := range subs {
		g.Go(func() error {
			task, err := svc.Task(gctx, s.envelope.TaskID)
			if err != nil {
				return fmt.Errorf("%s: task %q: %w", s.path, s.envelope.TaskID, err)
			}
			out, err := svc.EvaluateNow(gctx, service.EvaluateRequest{
				SubmissionID: s.envelope.SubmissionID,
				WorkerID:     s.envelope.WorkerID,
				TaskID:       task.ID,
				Submission:   s.envelope.Submission(task.Category),
				MinutesSpent: s.envelope.MinutesSpent,
			})
			if err != nil {
				return fmt.Errorf("%s: %w", s.path, err)
			}
			results[i] = fileOutcome{Path: s.path, Outcome: out}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &evaluateReport{Results: results}
	workers := map[string]bool{}
	for _, r := range results {
		if id := r.Outcome.WorkerID; id != "" && !workers[id] {
			workers[id] = true
			view, err := svc.Progression(ctx, id)
			if err != nil {
				return nil, err
			}
			report.Progressions = append(report.Progressions, view)
		}
	}
	sort.Slice(report.Progressions, func(i, j int) bool {
		return report.Progressions[i].Progression.WorkerID < report.Progressions[j].Progression.WorkerID
	})
	return report, nil
}

func printReport(w io.Writer, report *evaluateReport) {
	styles := newPrintStyles()
	fmt.Fprintln(w, styles.header.Render(fmt.Sprintf("%-32s %-20s %5s %5s %5s %7s %-18s %s",
		"FILE", "TASK", "ACC", "SPD", "QUAL", "OVERALL", "TIER", "RESULT")))
	for _, r := range report.Results {
		res := r.Outcome.Result
		fmt.Fprintf(w, "%-32s %-20s %5d %5d %5d %7d %s %s\n",
			r.Path, r.Outcome.TaskID, res.AccuracyScore, res.SpeedScore, res.QualityScore, res.OverallScore,
			styles.tier(res.Tier, 18), styles.verdict(res.Passed))
		if res.Feedback != "" {
			fmt.Fprintln(w, styles.dim.Render("  "+res.Feedback))
		}
	}
	if len(report.Progressions) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, styles.header.Render(fmt.Sprintf("%-24s %9s %6s %-10s %-12s %s",
		"WORKER", "COMPLETED", "PASSED", "BADGE", "LEVEL", "RATE/HR")))
	for _, v := range report.Progressions {
		p := v.Progression
		fmt.Fprintf(w, "%-24s %9d %6d %s %-12s %d\n",
			p.WorkerID, p.Completed, p.Passed, styles.badge.Width(10).Render(p.CurrentBadge.String()),
			v.Assignment.ExperienceLevel, v.Assignment.EstimatedHourlyRate)
	}
}
