// Package monitoring serves the state of live judging runs over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/rs/xid"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
	"go.uber.org/zap"

	"github.com/sarchlab/itch/execlog"
	"github.com/sarchlab/itch/judge"
	"github.com/sarchlab/itch/monitoring/web"
)

// ProfileDuration is how long /api/profile samples the CPU.
var ProfileDuration = time.Second

// Monitor turns judging runs into a web server that can be inspected while
// they run.
type Monitor struct {
	portNumber int
	assetDir   string
	logger     *zap.Logger

	mu    sync.Mutex
	runs  map[string]*judge.Context
	names []string

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server *http.Server
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{
		logger: zap.NewNop(),
		runs:   make(map[string]*judge.Context),
	}
}

// WithPortNumber sets the port number of the monitor. Ports below 1000 are
// replaced by a random port.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn("monitor port not allowed, using a random port",
			zap.Int("port", portNumber))

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithAssetDir serves the pages from a directory instead of the pages built
// into the binary.
func (m *Monitor) WithAssetDir(dir string) *Monitor {
	m.assetDir = dir
	return m
}

// WithLogger sets the logger of the monitor.
func (m *Monitor) WithLogger(logger *zap.Logger) *Monitor {
	m.logger = logger
	return m
}

// RegisterRun registers a run to be monitored. Registering a name again
// replaces the run.
func (m *Monitor) RegisterRun(name string, c *judge.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[name]; !exists {
		m.names = append(m.names, name)
	}

	m.runs[name] = c
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar to be shown on the webpage.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler serving the monitor.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/runs", m.listRuns)
	api.HandleFunc("/run/{run}/now", m.now)
	api.HandleFunc("/run/{run}/status", m.status)
	api.HandleFunc("/run/{run}/frames", m.frames)
	api.HandleFunc("/run/{run}/frame/at/{ms}", m.frameAt)
	api.HandleFunc("/run/{run}/events", m.events)
	api.HandleFunc("/run/{run}/schedule", m.schedule)
	api.HandleFunc("/run/{run}/actor/{name}", m.actorDetails)
	api.HandleFunc("/progress", m.listProgressBars)
	api.HandleFunc("/resource", m.listResources)
	api.HandleFunc("/profile", m.collectProfile)

	pages, err := web.Assets(m.assetDir)
	if err != nil {
		m.logger.Warn("serving the built-in pages", zap.Error(err))
		pages, _ = web.Assets("")
	}

	r.PathPrefix("/").Handler(http.FileServer(pages))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("start monitor: %w", err)
	}

	url := fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring judgement with %s\n", url)

	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("monitor stopped", zap.Error(err))
		}
	}()

	return url, nil
}

// StopServer closes the server started by StartServer.
func (m *Monitor) StopServer() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

func (m *Monitor) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.logger.Warn("cannot write monitor response", zap.Error(err))
	}
}

func (m *Monitor) fail(w http.ResponseWriter, code int, err error) {
	w.WriteHeader(code)
	fmt.Fprintf(w, "Error: %s", err)
}

func (m *Monitor) findRunOr404(w http.ResponseWriter, r *http.Request) *judge.Context {
	name := mux.Vars(r)["run"]

	m.mu.Lock()
	c := m.runs[name]
	m.mu.Unlock()

	if c == nil {
		m.fail(w, http.StatusNotFound, fmt.Errorf("run %q not found", name))
	}

	return c
}

type runRsp struct {
	Name       string  `json:"name"`
	Terminated bool    `json:"terminated"`
	Status     string  `json:"status,omitempty"`
	Error      string  `json:"error,omitempty"`
	Now        float64 `json:"now"`
	Frames     int     `json:"frames"`
	Events     int     `json:"events"`
}

func describeRun(name string, c *judge.Context) runRsp {
	rsp := runRsp{
		Name:       name,
		Terminated: c.Terminated(),
		Now:        c.Timestamp(),
		Frames:     len(c.Log().Frames()),
		Events:     len(c.Log().Events()),
	}

	if rsp.Terminated {
		o, _ := c.Finished().Result()
		rsp.Status = string(o.Status)

		if o.Err != nil {
			rsp.Error = o.Err.Error()
		}
	}

	return rsp
}

func (m *Monitor) listRuns(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	rsp := make([]runRsp, 0, len(m.names))
	for _, name := range m.names {
		rsp = append(rsp, describeRun(name, m.runs[name]))
	}
	m.mu.Unlock()

	m.writeJSON(w, rsp)
}

func (m *Monitor) now(w http.ResponseWriter, r *http.Request) {
	c := m.findRunOr404(w, r)
	if c == nil {
		return
	}

	fmt.Fprintf(w, "{\"now\":%.3f}", c.Timestamp())
}

func (m *Monitor) status(w http.ResponseWriter, r *http.Request) {
	c := m.findRunOr404(w, r)
	if c == nil {
		return
	}

	m.writeJSON(w, describeRun(mux.Vars(r)["run"], c))
}

func parseFloatParam(r *http.Request, name string, def float64) (float64, error) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}

	return v, nil
}

func (m *Monitor) frames(w http.ResponseWriter, r *http.Request) {
	c := m.findRunOr404(w, r)
	if c == nil {
		return
	}

	from, err := parseFloatParam(r, "from", 0)
	if err != nil {
		m.fail(w, http.StatusBadRequest, err)
		return
	}

	to, err := parseFloatParam(r, "to", c.Timestamp())
	if err != nil {
		m.fail(w, http.StatusBadRequest, err)
		return
	}

	m.writeJSON(w, c.Log().Frames().Between(from, to))
}

type frameAtRsp struct {
	Frame  *execlog.Frame   `json:"frame"`
	Events []*execlog.Event `json:"events"`
}

func (m *Monitor) frameAt(w http.ResponseWriter, r *http.Request) {
	c := m.findRunOr404(w, r)
	if c == nil {
		return
	}

	ms, err := strconv.ParseFloat(mux.Vars(r)["ms"], 64)
	if err != nil {
		m.fail(w, http.StatusBadRequest, err)
		return
	}

	cursor := c.Log().Cursor()

	f := cursor.Seek(ms)
	if f == nil {
		m.fail(w, http.StatusNotFound, fmt.Errorf("no frame at %g ms", ms))
		return
	}

	m.writeJSON(w, frameAtRsp{Frame: f, Events: cursor.EventsUntil()})
}

func (m *Monitor) events(w http.ResponseWriter, r *http.Request) {
	c := m.findRunOr404(w, r)
	if c == nil {
		return
	}

	events := c.Log().Events()
	if t := r.URL.Query().Get("type"); t != "" {
		events = c.Log().EventsOfType(t)
	}

	m.writeJSON(w, events)
}

func (m *Monitor) schedule(w http.ResponseWriter, r *http.Request) {
	c := m.findRunOr404(w, r)
	if c == nil {
		return
	}

	s := c.Schedule()
	if s == nil {
		m.writeJSON(w, []judge.NodeInfo{})
		return
	}

	if r.URL.Query().Get("format") == "text" {
		var buf bytes.Buffer
		if err := s.Dump(&buf); err != nil {
			m.fail(w, http.StatusInternalServerError, err)
			return
		}

		_, _ = w.Write(buf.Bytes())

		return
	}

	m.writeJSON(w, s.Snapshot())
}

func (m *Monitor) actorDetails(w http.ResponseWriter, r *http.Request) {
	c := m.findRunOr404(w, r)
	if c == nil {
		return
	}

	name := mux.Vars(r)["name"]

	var state *execlog.ActorSnapshot

	if last := c.Log().LastFrame(); last != nil {
		if a, ok := last.Actor(name); ok {
			state = &a
		}
	}

	if state == nil {
		m.fail(w, http.StatusNotFound, fmt.Errorf("actor %q not found", name))
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(state)
	serializer.SetMaxDepth(2)

	if field := r.URL.Query().Get("field"); field != "" {
		if err := serializer.SetEntryPoint(strings.Split(field, ".")); err != nil {
			m.fail(w, http.StatusBadRequest, err)
			return
		}
	}

	if err := serializer.Serialize(w); err != nil {
		m.logger.Warn("cannot serialize actor", zap.String("actor", name), zap.Error(err))
	}
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]ProgressSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.Snapshot())
	}
	m.progressBarsLock.Unlock()

	sort.Slice(bars, func(i, j int) bool {
		return bars[i].StartTime.Before(bars[j].StartTime)
	})

	m.writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		m.fail(w, http.StatusInternalServerError, err)
		return
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		m.fail(w, http.StatusInternalServerError, err)
		return
	}

	memoryInfo, err := proc.MemoryInfo()
	if err != nil {
		m.fail(w, http.StatusInternalServerError, err)
		return
	}

	m.writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	if err := pprof.StartCPUProfile(buf); err != nil {
		m.fail(w, http.StatusConflict, err)
		return
	}

	time.Sleep(ProfileDuration)
	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		m.fail(w, http.StatusInternalServerError, err)
		return
	}

	m.writeJSON(w, prof)
}
