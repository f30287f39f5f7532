// Package report streams the result of a judgement as a sequence of nested
// commands: a judgement holds tabs, tabs hold contexts, contexts hold
// testcases and testcases hold tests.
package report

import (
	"sync"

	"go.uber.org/zap"
)

// A Sink receives the result of a judgement.
type Sink interface {
	StartJudgement()
	CloseJudgement(accepted bool)
	StartTab(title string)
	CloseTab(accepted bool)
	StartContext(description string)
	CloseContext(accepted bool)
	StartTestcase(description string)
	CloseTestcase(accepted bool)
	StartTest(description, expected string)
	CloseTest(generated string, accepted bool)
	AppendMessage(message string)
	EscalateStatus(status Status)
}

type level int

const (
	levelJudgement level = iota
	levelTab
	levelContext
	levelTestcase
	levelTest
)

var startCommands = [...]string{
	CmdStartJudgement, CmdStartTab, CmdStartContext, CmdStartTestcase, CmdStartTest,
}

var closeCommands = [...]string{
	CmdCloseJudgement, CmdCloseTab, CmdCloseContext, CmdCloseTestcase, CmdCloseTest,
}

type openLevel struct {
	level    level
	accepted bool
}

// Reporter is a Sink that keeps the nesting of the stream valid. Starting a
// level opens the missing parent levels and closes any open level at the
// same depth or deeper. Closing a level closes its open children first. It
// is safe for concurrent use.
type Reporter struct {
	mu     sync.Mutex
	out    Emitter
	logger *zap.Logger

	open     []openLevel
	finished bool
	status   Status
	err      error
}

// NewReporter creates a reporter writing to out.
func NewReporter(out Emitter, logger *zap.Logger) *Reporter {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Reporter{
		out:    out,
		logger: logger,
		status: StatusCorrect,
	}
}

// Status returns the worst status escalated so far.
func (r *Reporter) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.status
}

// Finished tells whether the judgement was closed.
func (r *Reporter) Finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.finished
}

// Err returns the first error returned by the emitter.
func (r *Reporter) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

// StartJudgement opens the judgement.
func (r *Reporter) StartJudgement() {
	r.start(levelJudgement, Command{Command: CmdStartJudgement})
}

// CloseJudgement closes the judgement and everything still open in it.
func (r *Reporter) CloseJudgement(accepted bool) {
	r.close(levelJudgement, Command{Command: CmdCloseJudgement}, accepted)
}

// StartTab opens a tab.
func (r *Reporter) StartTab(title string) {
	r.start(levelTab, Command{Command: CmdStartTab, Title: title})
}

// CloseTab closes the open tab.
func (r *Reporter) CloseTab(accepted bool) {
	r.close(levelTab, Command{Command: CmdCloseTab}, accepted)
}

// StartContext opens a context.
func (r *Reporter) StartContext(description string) {
	r.start(levelContext, Command{Command: CmdStartContext, Description: description})
}

// CloseContext closes the open context.
func (r *Reporter) CloseContext(accepted bool) {
	r.close(levelContext, Command{Command: CmdCloseContext}, accepted)
}

// StartTestcase opens a testcase.
func (r *Reporter) StartTestcase(description string) {
	r.start(levelTestcase, Command{Command: CmdStartTestcase, Description: description})
}

// CloseTestcase closes the open testcase.
func (r *Reporter) CloseTestcase(accepted bool) {
	r.close(levelTestcase, Command{Command: CmdCloseTestcase}, accepted)
}

// StartTest opens a test.
func (r *Reporter) StartTest(description, expected string) {
	r.start(levelTest, Command{
		Command:     CmdStartTest,
		Description: description,
		Expected:    expected,
	})
}

// CloseTest closes the open test.
func (r *Reporter) CloseTest(generated string, accepted bool) {
	r.close(levelTest, Command{Command: CmdCloseTest, Generated: generated}, accepted)
}

// AppendMessage attaches a message to the innermost open level.
func (r *Reporter) AppendMessage(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ensureJudgement() {
		return
	}

	r.emit(Command{Command: CmdAppendMessage, Message: message})
}

// EscalateStatus worsens the status of the judgement. Escalating to a
// better status than the current one is reported but does not change it.
func (r *Reporter) EscalateStatus(status Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.ensureJudgement() {
		return
	}

	if status.Worse(r.status) {
		r.status = status
	}

	r.emit(Command{Command: CmdEscalateStatus, Status: status})
}

func (r *Reporter) start(lvl level, cmd Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finished {
		r.logger.Warn("report command after the judgement closed",
			zap.String("command", cmd.Command))

		return
	}

	r.closeFrom(lvl)

	for next := r.depth(); next < lvl; next++ {
		r.push(next, Command{Command: startCommands[next]})
	}

	r.push(lvl, cmd)
}

func (r *Reporter) close(lvl level, cmd Command, accepted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lvl == levelJudgement && !r.ensureJudgement() {
		return
	}

	if r.depth() <= lvl {
		r.logger.Warn("closing a level that is not open",
			zap.String("command", cmd.Command))

		return
	}

	r.closeFrom(lvl + 1)
	r.pop(cmd, accepted)
}

// ensureJudgement opens the judgement if it was never started. It reports
// false if the judgement is already closed.
func (r *Reporter) ensureJudgement() bool {
	if r.finished {
		return false
	}

	if r.depth() == 0 {
		r.push(levelJudgement, Command{Command: CmdStartJudgement})
	}

	return true
}

// depth returns the level a new child would be opened at.
func (r *Reporter) depth() level {
	return level(len(r.open))
}

// closeFrom closes every open level at lvl or deeper with the outcome of
// their children.
func (r *Reporter) closeFrom(lvl level) {
	for r.depth() > lvl {
		top := r.open[len(r.open)-1]
		r.pop(Command{Command: closeCommands[top.level]}, top.accepted)
	}
}

func (r *Reporter) push(lvl level, cmd Command) {
	r.open = append(r.open, openLevel{level: lvl, accepted: true})
	r.emit(cmd)
}

func (r *Reporter) pop(cmd Command, accepted bool) {
	top := r.open[len(r.open)-1]
	r.open = r.open[:len(r.open)-1]

	if len(r.open) > 0 && !accepted {
		r.open[len(r.open)-1].accepted = false
	}

	if top.level == levelJudgement {
		r.finished = true
	}

	cmd.Accepted = &accepted
	r.emit(cmd)
}

func (r *Reporter) emit(cmd Command) {
	if err := r.out.Emit(cmd); err != nil {
		r.logger.Error("cannot emit report command",
			zap.String("command", cmd.Command), zap.Error(err))

		if r.err == nil {
			r.err = err
		}
	}
}

var _ Sink = (*Reporter)(nil)
