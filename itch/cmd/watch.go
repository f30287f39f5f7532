package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sarchlab/itch/plan"
)

var watchCmd = &cobra.Command{
	Use:   "watch <plan.yaml>",
	Short: "Judge a plan again whenever it or its project changes.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		debounce, _ := cmd.Flags().GetDuration("debounce")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		r, err := newRunner(cfg, logger)
		if err != nil {
			return err
		}
		defer r.close()

		w, err := newWatcher(debounce)
		if err != nil {
			return err
		}

		err = r.watch(ctx, w, args[0], cmd.OutOrStdout())
		if ctx.Err() != nil {
			return nil
		}

		return err
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addRunFlags(watchCmd)
	watchCmd.Flags().Duration("debounce", 300*time.Millisecond,
		"quiet period after a change before judging again")
}

// watch judges the plan, then judges it again after every change of the
// plan file or of the project it names, until ctx is done.
func (r *runner) watch(ctx context.Context, w *watcher, path string, out io.Writer) error {
	go w.run(ctx)

	for {
		if err := w.watch(path); err != nil {
			return err
		}

		if p, err := plan.Load(path); err == nil && p.ProjectPath() != "" {
			if err := w.watch(p.ProjectPath()); err != nil {
				r.logger.Warn("cannot watch project", zap.Error(err))
			}
		}

		j, err := r.judge(ctx, path, out)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			r.logger.Error("cannot judge", zap.String("plan", path), zap.Error(err))
		default:
			r.logger.Info("waiting for changes", zap.String("status", j.Status.Human()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case changed := <-w.changed:
			r.logger.Info("changed", zap.String("path", changed))
		}
	}
}

// watcher reports changes of a set of files. Bursts of changes are reported
// once, after a quiet period.
type watcher struct {
	fs       *fsnotify.Watcher
	debounce time.Duration
	changed  chan string

	mu    sync.Mutex
	files map[string]bool
	timer *time.Timer
}

func newWatcher(debounce time.Duration) (*watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	return &watcher{
		fs:       fsWatcher,
		debounce: debounce,
		changed:  make(chan string, 1),
		files:    make(map[string]bool),
	}, nil
}

// watch adds a file. Editors often replace files instead of writing them,
// so the directory holding the file is watched.
func (w *watcher) watch(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}

	if _, err := os.Stat(absPath); err != nil {
		return err
	}

	w.mu.Lock()
	known := w.files[absPath]
	w.files[absPath] = true
	w.mu.Unlock()

	if known {
		return nil
	}

	if err := w.fs.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}

	return nil
}

// run forwards the changes until ctx is done.
func (w *watcher) run(ctx context.Context) {
	defer w.fs.Close()

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()

			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}

			w.schedule(event.Name)

		case _, ok := <-w.fs.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *watcher) schedule(name string) {
	absPath, err := filepath.Abs(name)
	if err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.files[absPath] {
		return
	}

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.changed <- absPath:
		default:
		}
	})
}
