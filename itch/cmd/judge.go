package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var errNotAccepted = errors.New("not accepted")

var judgeCmd = &cobra.Command{
	Use:   "judge <plan.yaml>",
	Short: "Judge a project with a plan.",
	Long: "`judge plan.yaml` loads the project the plan names, runs its " +
		"schedule and reports its tests. The command fails unless the " +
		"judgement is correct.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
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

		j, err := r.judge(ctx, args[0], cmd.OutOrStdout())
		if err != nil {
			return err
		}

		if keep, _ := cmd.Flags().GetBool("keep-monitor"); keep && r.monitor != nil {
			logger.Info("judgement done, monitor still serving; interrupt to exit")
			<-ctx.Done()
		}

		if !j.Accepted() {
			logger.Debug("judgement", zap.Any("result", j))
			return fmt.Errorf("%s: %w (%s)", j.Name, errNotAccepted, j.Status.Human())
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(judgeCmd)
	addRunFlags(judgeCmd)
	judgeCmd.Flags().Bool("keep-monitor", false, "keep the monitor serving after the run")
}
