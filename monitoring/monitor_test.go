package monitoring

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/itch/execlog"
	"github.com/sarchlab/itch/judge"
	"github.com/sarchlab/itch/stage"
)

const project = `
sprite("Cat", {x = 0, y = 0, variables = {score = 3}})

when_clicked(function()
  move(10)
end)
`

var _ = Describe("Monitor", func() {
	var (
		m      *Monitor
		server *httptest.Server
		c      *judge.Context
	)

	get := func(path string) (int, []byte) {
		rsp, err := http.Get(server.URL + path)
		Expect(err).ToNot(HaveOccurred())
		defer rsp.Body.Close()

		body, err := io.ReadAll(rsp.Body)
		Expect(err).ToNot(HaveOccurred())

		return rsp.StatusCode, body
	}

	BeforeEach(func() {
		s, err := stage.MakeBuilder().Build(project)
		Expect(err).ToNot(HaveOccurred())
		DeferCleanup(s.Close)

		c = judge.NewContext(
			judge.WithSimulation(s),
			judge.WithAcceleration(judge.Acceleration{Factor: 10}),
		)

		m = NewMonitor()
		m.RegisterRun("cat", c)

		server = httptest.NewServer(m.Router())
		DeferCleanup(server.Close)

		root := judge.NewSchedule().Root()
		root.ClickSprite("Cat").Wait(100 * time.Millisecond).End()

		o, err := c.Run(context.Background(), root)
		Expect(err).ToNot(HaveOccurred())
		Expect(o.Accepted()).To(BeTrue())
	})

	It("should list runs", func() {
		code, body := get("/api/runs")
		Expect(code).To(Equal(http.StatusOK))

		var runs []runRsp
		Expect(json.Unmarshal(body, &runs)).To(Succeed())
		Expect(runs).To(HaveLen(1))
		Expect(runs[0].Name).To(Equal("cat"))
		Expect(runs[0].Terminated).To(BeTrue())
		Expect(runs[0].Status).To(Equal("correct"))
		Expect(runs[0].Frames).To(BeNumerically(">=", 3))
	})

	It("should report the time of a run", func() {
		code, body := get("/api/run/cat/now")
		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(HavePrefix(`{"now":`))
	})

	It("should answer 404 for unknown runs", func() {
		code, _ := get("/api/run/dog/status")
		Expect(code).To(Equal(http.StatusNotFound))
	})

	It("should serve frames in a range", func() {
		code, body := get("/api/run/cat/frames?from=0")
		Expect(code).To(Equal(http.StatusOK))

		var frames []execlog.Frame
		Expect(json.Unmarshal(body, &frames)).To(Succeed())
		Expect(frames).ToNot(BeEmpty())
		Expect(frames[0].Label).To(Equal("start"))

		code, _ = get("/api/run/cat/frames?from=soon")
		Expect(code).To(Equal(http.StatusBadRequest))
	})

	It("should scrub to a frame", func() {
		last := c.Log().Frames().Last()

		code, body := get("/api/run/cat/frame/at/100000")
		Expect(code).To(Equal(http.StatusOK))

		var rsp struct {
			Frame  execlog.Frame     `json:"frame"`
			Events []json.RawMessage `json:"events"`
		}
		Expect(json.Unmarshal(body, &rsp)).To(Succeed())
		Expect(rsp.Frame.Timestamp).To(Equal(last.Timestamp))
		Expect(rsp.Events).To(HaveLen(len(c.Log().Events())))
	})

	It("should filter events by type", func() {
		code, body := get("/api/run/cat/events?type=click")
		Expect(code).To(Equal(http.StatusOK))

		var events []map[string]any
		Expect(json.Unmarshal(body, &events)).To(Succeed())
		Expect(events).To(HaveLen(1))
		Expect(events[0]["type"]).To(Equal("click"))
	})

	It("should describe the schedule", func() {
		code, body := get("/api/run/cat/schedule")
		Expect(code).To(Equal(http.StatusOK))

		var nodes []judge.NodeInfo
		Expect(json.Unmarshal(body, &nodes)).To(Succeed())
		Expect(nodes).To(HaveLen(4))
		Expect(nodes[1].State).To(Equal("resolved"))

		code, body = get("/api/run/cat/schedule?format=text")
		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(HavePrefix("#0 root"))
	})

	It("should serialize actors", func() {
		code, body := get("/api/run/cat/actor/Cat")
		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring("Cat"))

		code, _ = get("/api/run/cat/actor/Dog")
		Expect(code).To(Equal(http.StatusNotFound))
	})

	It("should track progress bars", func() {
		bar := m.CreateProgressBar("batch", 3)
		bar.IncrementInProgress(2)
		bar.MoveInProgressToFinished(1)

		_, body := get("/api/progress")

		var bars []ProgressSnapshot
		Expect(json.Unmarshal(body, &bars)).To(Succeed())
		Expect(bars).To(HaveLen(1))
		Expect(bars[0].Finished).To(Equal(uint64(1)))
		Expect(bars[0].InProgress).To(Equal(uint64(1)))

		m.CompleteProgressBar(bar)

		_, body = get("/api/progress")
		Expect(string(body)).To(Equal("[]\n"))
	})

	It("should report resources", func() {
		code, body := get("/api/resource")
		Expect(code).To(Equal(http.StatusOK))

		var rsp resourceRsp
		Expect(json.Unmarshal(body, &rsp)).To(Succeed())
		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the web page", func() {
		code, body := get("/")
		Expect(code).To(Equal(http.StatusOK))
		Expect(string(body)).To(ContainSubstring("itch monitor"))
	})

	It("should serve pages from a directory", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "index.html"),
			[]byte("draft monitor"), 0o600)).To(Succeed())

		pages := httptest.NewServer(NewMonitor().WithAssetDir(dir).Router())
		DeferCleanup(pages.Close)

		rsp, err := http.Get(pages.URL + "/")
		Expect(err).ToNot(HaveOccurred())
		defer rsp.Body.Close()

		body, _ := io.ReadAll(rsp.Body)
		Expect(string(body)).To(Equal("draft monitor"))
	})

	It("should fall back to the built-in pages", func() {
		m.WithAssetDir(filepath.Join(GinkgoT().TempDir(), "missing"))
		pages := httptest.NewServer(m.Router())
		DeferCleanup(pages.Close)

		rsp, err := http.Get(pages.URL + "/")
		Expect(err).ToNot(HaveOccurred())
		defer rsp.Body.Close()

		body, _ := io.ReadAll(rsp.Body)
		Expect(string(body)).To(ContainSubstring("itch monitor"))
	})

	It("should replace ports that are not allowed", func() {
		Expect(NewMonitor().WithPortNumber(80).portNumber).To(Equal(0))
		Expect(NewMonitor().WithPortNumber(8080).portNumber).To(Equal(8080))
	})

	It("should start and stop a server", func() {
		url, err := NewMonitor().StartServer()
		Expect(err).ToNot(HaveOccurred())
		Expect(url).To(HavePrefix("http://localhost:"))
	})
})
