package datarecording

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/xid"

	"github.com/sarchlab/itch/execlog"
	"github.com/sarchlab/itch/judge"
)

// Tables written by a RunRecorder.
const (
	TableRun    = "run_info"
	TableFrame  = "frame"
	TableActor  = "actor"
	TableEvent  = "event"
	TableNode   = "node"
	TableOpcode = "opcode"
)

// RunInfo is a property of a run.
type RunInfo struct {
	Run      string
	Property string
	Value    string
}

// FrameEntry is a row of the frame table.
type FrameEntry struct {
	Run       string
	Idx       int
	Timestamp float64
	Label     string
}

// ActorEntry is an actor snapshot of a frame.
type ActorEntry struct {
	Run          string
	Frame        int
	Name         string
	IsStage      bool
	X            float64
	Y            float64
	Direction    float64
	Visible      bool
	Size         float64
	CostumeID    int
	CostumeName  string
	TouchingEdge bool
	BoundsLeft   float64
	BoundsRight  float64
	BoundsTop    float64
	BoundsBottom float64
	Variables    string
}

// EventEntry is a row of the event table. Previous and Next are frame
// indices, -1 when unset.
type EventEntry struct {
	Run       string
	ID        string
	Timestamp float64
	Type      string
	Data      string
	Previous  int
	Next      int
}

// NodeEntry is a node of the schedule.
type NodeEntry struct {
	Run      string
	ID       int
	Parent   int
	Action   string
	Async    bool
	Timeout  float64
	State    string
	Launched int
	Error    string
}

// OpcodeEntry aggregates the executions of a primitive.
type OpcodeEntry struct {
	Run     string
	Opcode  string
	Count   int
	TotalNs int64
}

// Run is what a RunRecorder exports.
type Run struct {
	// ID identifies the run in every table. An empty ID is generated.
	ID string

	Name     string
	Project  string
	Start    time.Time
	Outcome  judge.Outcome
	Log      *execlog.Log
	Schedule *judge.Schedule
}

// RunRecorder writes judged runs into a DataRecorder.
type RunRecorder struct {
	mu       sync.Mutex
	recorder DataRecorder
	ready    bool
}

// NewRunRecorder creates a RunRecorder writing to recorder.
func NewRunRecorder(recorder DataRecorder) *RunRecorder {
	return &RunRecorder{recorder: recorder}
}

func (r *RunRecorder) setupTables() error {
	if r.ready {
		return nil
	}

	samples := []struct {
		name  string
		entry any
	}{
		{TableRun, RunInfo{}},
		{TableFrame, FrameEntry{}},
		{TableActor, ActorEntry{}},
		{TableEvent, EventEntry{}},
		{TableNode, NodeEntry{}},
		{TableOpcode, OpcodeEntry{}},
	}

	for _, s := range samples {
		if err := r.recorder.CreateTable(s.name, s.entry); err != nil {
			return err
		}
	}

	r.ready = true

	return nil
}

// Record writes a run and flushes the recorder. It returns the run ID.
func (r *RunRecorder) Record(run Run) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.setupTables(); err != nil {
		return "", err
	}

	if run.ID == "" {
		run.ID = xid.New().String()
	}

	steps := []func(Run) error{
		r.recordInfo,
		r.recordFrames,
		r.recordNodes,
		r.recordOpcodes,
	}

	for _, step := range steps {
		if err := step(run); err != nil {
			return "", err
		}
	}

	if err := r.recorder.Flush(); err != nil {
		return "", err
	}

	return run.ID, nil
}

func (r *RunRecorder) recordInfo(run Run) error {
	status := string(run.Outcome.Status)

	errText := ""
	if run.Outcome.Err != nil {
		errText = run.Outcome.Err.Error()
	}

	props := [][2]string{
		{"Name", run.Name},
		{"Project", run.Project},
		{"Command", strings.Join(os.Args, " ")},
		{"Status", status},
		{"Error", errText},
		{"End Time", time.Now().Format(time.RFC3339Nano)},
	}

	if !run.Start.IsZero() {
		props = append(props, [2]string{"Start Time", run.Start.Format(time.RFC3339Nano)})
	}

	for _, p := range props {
		err := r.recorder.InsertData(TableRun, RunInfo{
			Run:      run.ID,
			Property: p[0],
			Value:    p[1],
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *RunRecorder) recordFrames(run Run) error {
	if run.Log == nil {
		return nil
	}

	frames := run.Log.Frames()
	index := make(map[*execlog.Frame]int, len(frames))

	for i, f := range frames {
		index[f] = i

		err := r.recorder.InsertData(TableFrame, FrameEntry{
			Run:       run.ID,
			Idx:       i,
			Timestamp: f.Timestamp,
			Label:     f.Label,
		})
		if err != nil {
			return err
		}

		for _, a := range f.Actors {
			if err := r.recorder.InsertData(TableActor, actorEntry(run.ID, i, a)); err != nil {
				return err
			}
		}
	}

	for _, e := range run.Log.Events() {
		entry, err := eventEntry(run.ID, e, index)
		if err != nil {
			return err
		}

		if err := r.recorder.InsertData(TableEvent, entry); err != nil {
			return err
		}
	}

	return nil
}

func actorEntry(run string, frame int, a execlog.ActorSnapshot) ActorEntry {
	variables, err := json.Marshal(a.Variables)
	if err != nil {
		variables = []byte(fmt.Sprint(a.Variables))
	}

	return ActorEntry{
		Run:          run,
		Frame:        frame,
		Name:         a.Name,
		IsStage:      a.IsStage,
		X:            a.X,
		Y:            a.Y,
		Direction:    a.Direction,
		Visible:      a.Visible,
		Size:         a.Size,
		CostumeID:    a.CostumeID,
		CostumeName:  a.CostumeName,
		TouchingEdge: a.TouchingEdge,
		BoundsLeft:   a.Bounds.Left,
		BoundsRight:  a.Bounds.Right,
		BoundsTop:    a.Bounds.Top,
		BoundsBottom: a.Bounds.Bottom,
		Variables:    string(variables),
	}
}

func eventEntry(
	run string,
	e *execlog.Event,
	index map[*execlog.Frame]int,
) (EventEntry, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return EventEntry{}, fmt.Errorf("event %s: %w", e.ID, err)
	}

	frameIndex := func(f *execlog.Frame) int {
		if i, ok := index[f]; ok && f != nil {
			return i
		}

		return -1
	}

	return EventEntry{
		Run:       run,
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Type:      e.Type,
		Data:      string(data),
		Previous:  frameIndex(e.Previous),
		Next:      frameIndex(e.Next()),
	}, nil
}

func (r *RunRecorder) recordNodes(run Run) error {
	if run.Schedule == nil {
		return nil
	}

	for _, n := range run.Schedule.Snapshot() {
		err := r.recorder.InsertData(TableNode, NodeEntry{
			Run:      run.ID,
			ID:       n.ID,
			Parent:   n.Parent,
			Action:   n.Action,
			Async:    n.Async,
			Timeout:  n.Timeout,
			State:    n.State,
			Launched: n.Launched,
			Error:    n.Error,
		})
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *RunRecorder) recordOpcodes(run Run) error {
	if run.Log == nil {
		return nil
	}

	counts := run.Log.OpcodeCounts()
	profile := run.Log.Profile()

	opcodes := make([]string, 0, len(counts))
	for op := range counts {
		opcodes = append(opcodes, op)
	}

	for op := range profile {
		if _, ok := counts[op]; !ok {
			opcodes = append(opcodes, op)
		}
	}

	sort.Strings(opcodes)

	for _, op := range opcodes {
		count := counts[op]
		if p, ok := profile[op]; ok && p.Count > count {
			count = p.Count
		}

		err := r.recorder.InsertData(TableOpcode, OpcodeEntry{
			Run:     run.ID,
			Opcode:  op,
			Count:   count,
			TotalNs: profile[op].Total.Nanoseconds(),
		})
		if err != nil {
			return err
		}
	}

	return nil
}
