package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sarchlab/itch/config"
	"github.com/sarchlab/itch/datarecording"
	"github.com/sarchlab/itch/judge"
	"github.com/sarchlab/itch/monitoring"
	"github.com/sarchlab/itch/plan"
	"github.com/sarchlab/itch/report"
	"github.com/sarchlab/itch/stage"
)

var errNoProject = errors.New("plan names no project")

// judgement is the result of judging one plan.
type judgement struct {
	Plan    string        `json:"plan"`
	Name    string        `json:"name"`
	Status  report.Status `json:"status"`
	Error   string        `json:"error,omitempty"`
	Results []plan.Result `json:"results,omitempty"`
	RunID   string        `json:"run_id,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Accepted tells whether the plan was judged correct.
func (j judgement) Accepted() bool {
	return j.Status == report.StatusCorrect
}

func failedJudgement(path string, err error) judgement {
	return judgement{
		Plan:   path,
		Name:   planName(path, nil),
		Status: report.StatusInternalError,
		Error:  err.Error(),
	}
}

// runner judges plans with the shared configuration, monitor and recorder.
type runner struct {
	cfg      *config.Config
	logger   *zap.Logger
	monitor  *monitoring.Monitor
	recorder *datarecording.RunRecorder
	db       datarecording.DataRecorder
}

func newRunner(cfg *config.Config, logger *zap.Logger) (*runner, error) {
	r := &runner{cfg: cfg, logger: logger}

	if cfg.Output.Record {
		if err := r.openRecorder(); err != nil {
			return nil, err
		}
	}

	if cfg.Monitor.Enabled {
		if err := r.startMonitor(); err != nil {
			r.close()
			return nil, err
		}
	}

	return r, nil
}

func (r *runner) openRecorder() error {
	if err := os.MkdirAll(r.cfg.Output.Dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(r.cfg.Output.Dir,
		fmt.Sprintf("itch_recording_%s.sqlite3", xid.New().String()))

	db, err := datarecording.New(path)
	if err != nil {
		return err
	}

	r.db = db
	r.recorder = datarecording.NewRunRecorder(db)
	r.logger.Info("recording runs", zap.String("path", path))

	return nil
}

func (r *runner) startMonitor() error {
	r.monitor = monitoring.NewMonitor().
		WithPortNumber(r.cfg.Monitor.Port).
		WithAssetDir(r.cfg.Monitor.Assets).
		WithLogger(r.logger)

	url, err := r.monitor.StartServer()
	if err != nil {
		r.monitor = nil
		return fmt.Errorf("start monitor: %w", err)
	}

	r.logger.Info("monitoring", zap.String("url", url))

	if r.cfg.Monitor.Open {
		if err := browser.OpenURL(url); err != nil {
			r.logger.Warn("cannot open browser", zap.Error(err))
		}
	}

	return nil
}

func (r *runner) close() {
	if r.monitor != nil {
		if err := r.monitor.StopServer(); err != nil {
			r.logger.Warn("stop monitor", zap.Error(err))
		}
	}

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			r.logger.Warn("close recording", zap.Error(err))
		}
	}
}

func (r *runner) emitter(w io.Writer) report.Emitter {
	if r.cfg.Output.Format == "json" {
		return report.NewJSONEmitter(w)
	}

	return report.NewConsole(w)
}

func planName(path string, p *plan.Plan) string {
	if p != nil && p.Name != "" {
		return p.Name
	}

	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// judge runs the plan at path and writes its report to out.
func (r *runner) judge(ctx context.Context, path string, out io.Writer) (judgement, error) {
	p, err := plan.Load(path)
	if err != nil {
		return judgement{}, err
	}

	if p.ProjectPath() == "" {
		return judgement{}, fmt.Errorf("%s: %w", path, errNoProject)
	}

	name := planName(path, p)
	logger := r.logger.With(zap.String("plan", name))

	s, err := stage.MakeBuilder().
		WithFreq(stage.Freq(r.cfg.Stage.StepFrequency)).
		WithLogger(logger).
		BuildFile(p.ProjectPath())
	if err != nil {
		return judgement{}, fmt.Errorf("load project %s: %w", p.ProjectPath(), err)
	}
	defer s.Close()

	reporter := report.NewReporter(r.emitter(out), logger)

	opts := []judge.Option{
		judge.WithLogger(logger),
		judge.WithReporter(reporter),
		judge.WithAcceleration(r.cfg.Judge.Acceleration),
		judge.WithActionTimeout(r.cfg.Judge.ActionTimeout),
	}
	opts = append(opts, p.Options()...)

	if r.cfg.Judge.Profile {
		opts = append(opts, judge.WithProfiler())
	}

	c := judge.NewContext(append(opts, judge.WithSimulation(s))...)
	c.AcceptHook(judge.NewNodeLogger(logger))

	ev := plan.NewEvaluation(c, reporter)
	if err := p.Apply(ev); err != nil {
		return judgement{}, fmt.Errorf("%s: %w", path, err)
	}

	if r.monitor != nil {
		r.monitor.RegisterRun(name, c)
	}

	if r.cfg.Judge.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Judge.RunTimeout)
		defer cancel()
	}

	start := time.Now()

	o, err := ev.Run(ctx)
	if err != nil {
		return judgement{}, fmt.Errorf("run %s: %w", name, err)
	}

	j := judgement{
		Plan:    path,
		Name:    name,
		Status:  o.Status,
		Results: ev.Results(),
		Elapsed: time.Since(start),
	}

	if o.Err != nil {
		j.Error = o.Err.Error()
	}

	if r.recorder != nil {
		j.RunID, err = r.recorder.Record(datarecording.Run{
			Name:     name,
			Project:  p.ProjectPath(),
			Start:    start,
			Outcome:  o,
			Log:      c.Log(),
			Schedule: c.Schedule(),
		})
		if err != nil {
			return j, fmt.Errorf("record %s: %w", name, err)
		}
	}

	logger.Info("judged",
		zap.String("status", string(j.Status)),
		zap.Duration("elapsed", j.Elapsed))

	return j, nil
}

// applyFlags overrides the configuration with the flags set on the command
// line.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	if flags.Changed("monitor") {
		cfg.Monitor.Enabled, _ = flags.GetBool("monitor")
	}

	if flags.Changed("open-monitor") {
		cfg.Monitor.Open, _ = flags.GetBool("open-monitor")
		cfg.Monitor.Enabled = cfg.Monitor.Enabled || cfg.Monitor.Open
	}

	if flags.Changed("monitor-port") {
		cfg.Monitor.Port, _ = flags.GetInt("monitor-port")
	}

	if flags.Changed("record") {
		cfg.Output.Record, _ = flags.GetBool("record")
	}

	if flags.Changed("format") {
		cfg.Output.Format, _ = flags.GetString("format")
	}

	if flags.Changed("output-dir") {
		cfg.Output.Dir, _ = flags.GetString("output-dir")
	}

	if flags.Changed("profile") {
		cfg.Judge.Profile, _ = flags.GetBool("profile")
	}
}

func addRunFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.Bool("monitor", false, "serve the monitor while judging")
	flags.Bool("open-monitor", false, "open the monitor in a browser")
	flags.Int("monitor-port", 0, "port of the monitor, random when 0")
	flags.Bool("record", false, "export the runs into a SQLite database")
	flags.String("format", "console", "report format, console or json")
	flags.String("output-dir", ".", "directory of the recordings")
	flags.Bool("profile", false, "record the duration of every primitive")
}
