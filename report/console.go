package report

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

var (
	accent  = lipgloss.Color("#FF0000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	failStyle    = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
)

// Console renders the stream for humans.
type Console struct {
	mu     sync.Mutex
	w      io.Writer
	indent int
	test   string
	status Status
}

// NewConsole creates a console renderer writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, status: StatusCorrect}
}

// Emit renders the command.
func (c *Console) Emit(cmd Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch cmd.Command {
	case CmdStartJudgement:
		c.status = StatusCorrect
		return c.line(titleStyle.Render("JUDGEMENT"))
	case CmdCloseJudgement:
		c.indent = 0
		return c.line(titleStyle.Render("RESULT ") + c.outcome(cmd, c.status.Human()))
	case CmdStartTab:
		err := c.line(titleStyle.Render("▸ " + strings.ToUpper(cmd.Title)))
		c.indent++

		return err
	case CmdStartContext, CmdStartTestcase:
		var err error
		if cmd.Description != "" {
			err = c.line(mutedStyle.Render(cmd.Description))
		}
		c.indent++

		return err
	case CmdStartTest:
		c.test = cmd.Description
		return nil
	case CmdCloseTest:
		text := c.test
		if cmd.Generated != "" {
			text += mutedStyle.Render(" (" + cmd.Generated + ")")
		}

		return c.line(c.outcome(cmd, "") + " " + text)
	case CmdCloseTab, CmdCloseContext, CmdCloseTestcase:
		c.indent = max(c.indent-1, 0)
		return nil
	case CmdAppendMessage:
		return c.line(mutedStyle.Render("│ " + cmd.Message))
	case CmdEscalateStatus:
		if cmd.Status.Worse(c.status) {
			c.status = cmd.Status
		}

		return c.line(failStyle.Render("! " + cmd.Status.Human()))
	default:
		return nil
	}
}

func (c *Console) outcome(cmd Command, label string) string {
	accepted := cmd.Accepted != nil && *cmd.Accepted

	switch {
	case accepted && label == "":
		return successStyle.Render("✓")
	case accepted:
		return successStyle.Render("✓ " + label)
	case label == "":
		return failStyle.Render("✗")
	default:
		return failStyle.Render("✗ " + label)
	}
}

func (c *Console) line(text string) error {
	_, err := fmt.Fprintln(c.w, strings.Repeat("  ", c.indent)+text)
	return err
}
