package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/itch/monitoring"
)

var batchCmd = &cobra.Command{
	Use:   "batch <plan or dir>...",
	Short: "Judge many plans concurrently.",
	Long: "`batch` judges every plan given, and every .yaml or .yml plan " +
		"inside the directories given, with a bounded number of workers. " +
		"The command fails unless every judgement is correct.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("workers") {
			cfg.Batch.Workers, _ = cmd.Flags().GetInt("workers")
		}

		if cfg.Batch.Workers <= 0 {
			return fmt.Errorf("batch workers must be positive, got %d", cfg.Batch.Workers)
		}

		plans, err := expandPlans(args)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		r, err := newRunner(cfg, logger)
		if err != nil {
			return err
		}
		defer r.close()

		judgements, err := r.batch(ctx, plans, cfg.Batch.Workers, cmd.OutOrStdout())
		if err != nil {
			return err
		}

		if err := writeSummary(cmd.OutOrStdout(), cfg.Output.Format, judgements); err != nil {
			return err
		}

		failed := 0
		for _, j := range judgements {
			if !j.Accepted() {
				failed++
			}
		}

		if failed > 0 {
			return fmt.Errorf("%d of %d plans: %w", failed, len(judgements), errNotAccepted)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(batchCmd)
	addRunFlags(batchCmd)
	batchCmd.Flags().IntP("workers", "j", 0, "number of plans judged at the same time")
}

// expandPlans replaces the directories among args with the plans they hold.
func expandPlans(args []string) ([]string, error) {
	var plans []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}

		if !info.IsDir() {
			plans = append(plans, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}

		found := 0

		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
				continue
			}

			plans = append(plans, filepath.Join(arg, e.Name()))
			found++
		}

		if found == 0 {
			return nil, fmt.Errorf("no plan in %s", arg)
		}
	}

	return plans, nil
}

// batch judges the plans with at most workers at a time. The report of a
// plan is written to out in one piece once the plan is judged. A plan that
// cannot be judged counts as an internal error; only cancelling ctx stops
// the batch.
func (r *runner) batch(
	ctx context.Context,
	plans []string,
	workers int,
	out io.Writer,
) ([]judgement, error) {
	var bar *monitoring.ProgressBar
	if r.monitor != nil {
		bar = r.monitor.CreateProgressBar("Judging", uint64(len(plans)))
		defer r.monitor.CompleteProgressBar(bar)
	}

	judgements := make([]judgement, len(plans))

	var outMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range plans {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			if bar != nil {
				bar.IncrementInProgress(1)
				defer bar.MoveInProgressToFinished(1)
			}

			var buf bytes.Buffer

			j, err := r.judge(gctx, path, &buf)
			if err != nil {
				r.logger.Warn("cannot judge", zap.String("plan", path), zap.Error(err))
				j = failedJudgement(path, err)
			}

			judgements[i] = j

			outMu.Lock()
			defer outMu.Unlock()

			_, err = buf.WriteTo(out)

			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return judgements, nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	passStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00CC66"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)
	nameStyle   = lipgloss.NewStyle().Width(32)
)

func writeSummary(w io.Writer, format string, judgements []judgement) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		return enc.Encode(judgements)
	}

	sorted := append([]judgement(nil), judgements...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	lines := []string{headerStyle.Render("SUMMARY")}
	passed := 0

	for _, j := range sorted {
		status := failStyle.Render(j.Status.Human())
		if j.Accepted() {
			status = passStyle.Render(j.Status.Human())
			passed++
		}

		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			nameStyle.Render(j.Name), status))
	}

	lines = append(lines, fmt.Sprintf("%d/%d correct", passed, len(judgements)))

	_, err := fmt.Fprintln(w, strings.Join(lines, "\n"))

	return err
}
