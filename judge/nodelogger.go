package judge

import (
	"go.uber.org/zap"

	"github.com/sarchlab/itch/sim"
)

// NodeLogger is a hook that logs the lifecycle of scheduled nodes.
type NodeLogger struct {
	sim.LogHookBase
}

// NewNodeLogger returns a NodeLogger writing into the logger.
func NewNodeLogger(logger *zap.Logger) *NodeLogger {
	h := new(NodeLogger)
	h.Logger = logger

	return h
}

// Func writes the node information into the logger.
func (h *NodeLogger) Func(ctx sim.HookCtx) {
	n, ok := ctx.Item.(*ScheduledEvent)
	if !ok {
		return
	}

	fields := []zap.Field{
		zap.Int("node", n.ID()),
		zap.Stringer("action", n.Action()),
	}

	if c, ok := ctx.Domain.(*Context); ok {
		fields = append(fields, zap.Float64("timestamp", c.Timestamp()))
	}

	switch ctx.Pos {
	case HookPosNodeStart:
		h.Logger.Debug("node started", fields...)
	case HookPosNodeResolved:
		h.Logger.Debug("node resolved", fields...)
	case HookPosNodeTimeout:
		h.Logger.Warn("node timed out", fields...)
	case HookPosNodeError:
		err, _ := ctx.Detail.(error)
		h.Logger.Warn("node failed", append(fields, zap.Error(err))...)
	}
}
