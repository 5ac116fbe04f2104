// Package monitoring turns a running board into a web server that can pause
// the hardware and show the state of the DMA channels.
package monitoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"strings"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/simplehal/simplehal/dma"
	"github.com/simplehal/simplehal/dmac"
	"github.com/simplehal/simplehal/monitoring/web"
	"github.com/simplehal/simplehal/sim"
	"github.com/simplehal/simplehal/tracing"
)

// A ChannelReporter is a DMA driver that can summarize its channels.
type ChannelReporter interface {
	tracing.NamedHookable
	Report() []dma.ChannelReport
}

// A RegisterSnapshotter is DMA hardware that can dump its channel registers.
type RegisterSnapshotter interface {
	Snapshot() []dmac.ChannelState
}

// Monitor can turn a simulation into a server and allows external monitoring
// controlling of the simulation.
type Monitor struct {
	engine     sim.Engine
	components []sim.Named
	portNumber int

	driver   ChannelReporter
	hardware RegisterSnapshotter
	busy     map[dma.ChannelID]*tracing.BusyTimeTracer

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		fmt.Fprintf(os.Stderr,
			"Port number %d is assigned to the monitoring server, "+
				"which is not allowed. Using a random port instead.\n", portNumber)
		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// RegisterEngine registers the engine that drives the board.
func (m *Monitor) RegisterEngine(e sim.Engine) {
	m.engine = e
}

// RegisterComponent registers a piece of hardware to be inspected.
func (m *Monitor) RegisterComponent(c sim.Named) {
	m.components = append(m.components, c)
}

// RegisterDMA registers the DMA driver and the hardware under it. Every
// channel gets a tracer that adds up the time the channel spends on
// transfers. The engine must be registered first.
func (m *Monitor) RegisterDMA(driver ChannelReporter, hw RegisterSnapshotter) {
	if m.engine == nil {
		log.Panic("engine must be registered before the DMA")
	}

	m.driver = driver
	m.hardware = hw
	m.busy = make(map[dma.ChannelID]*tracing.BusyTimeTracer)

	for _, ch := range dma.Channels() {
		t := tracing.NewBusyTimeTracer(m.engine, func(task tracing.Task) bool {
			info, ok := task.Detail.(dma.TransferInfo)
			return ok && info.Channel == ch
		})
		tracing.CollectTrace(driver, t)
		m.busy[ch] = t
	}
}

// BusyTime returns the time a channel has spent on finished transfers.
func (m *Monitor) BusyTime(ch dma.ChannelID) sim.VTimeInSec {
	t, ok := m.busy[ch]
	if !ok {
		return 0
	}

	return t.BusyTime()
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        sim.GetIDGenerator().Generate(),
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

func (m *Monitor) router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/pause", m.pauseEngine)
	r.HandleFunc("/api/continue", m.continueEngine)
	r.HandleFunc("/api/now", m.now)
	r.HandleFunc("/api/tick/{name}", m.tick)
	r.HandleFunc("/api/list_components", m.listComponents)
	r.HandleFunc("/api/component/{name}", m.listComponentDetails)
	r.HandleFunc("/api/field/{json}", m.listFieldValue)
	r.HandleFunc("/api/channels", m.listChannels)
	r.HandleFunc("/api/registers", m.listRegisters)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns its URL.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("localhost:%d", m.portNumber))
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://localhost:%d",
		listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring simulation with %s\n", url)

	go func() {
		err := http.Serve(listener, m.router())
		dieOnErr(err)
	}()

	return url, nil
}

func (m *Monitor) pauseEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Pause()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) continueEngine(w http.ResponseWriter, _ *http.Request) {
	m.engine.Continue()
	_, err := w.Write(nil)
	dieOnErr(err)
}

func (m *Monitor) now(w http.ResponseWriter, _ *http.Request) {
	now := m.engine.CurrentTime()
	fmt.Fprintf(w, "{\"now\":%.10f}", now)
}

func (m *Monitor) listComponents(w http.ResponseWriter, _ *http.Request) {
	names := make([]string, 0, len(m.components))
	for _, c := range m.components {
		names = append(names, c.Name())
	}

	writeJSON(w, names)
}

type tickingComponent interface {
	TickLater()
}

func (m *Monitor) tick(w http.ResponseWriter, r *http.Request) {
	comp := m.findComponentOr404(w, mux.Vars(r)["name"])
	if comp == nil {
		return
	}

	tickingComp, ok := comp.(tickingComponent)
	if !ok {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	tickingComp.TickLater()
	w.WriteHeader(http.StatusOK)
}

func (m *Monitor) listComponentDetails(w http.ResponseWriter, r *http.Request) {
	component := m.findComponentOr404(w, mux.Vars(r)["name"])
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

type fieldReq struct {
	CompName  string `json:"comp_name,omitempty"`
	FieldName string `json:"field_name,omitempty"`
}

func (m *Monitor) listFieldValue(w http.ResponseWriter, r *http.Request) {
	req := fieldReq{}

	err := json.Unmarshal([]byte(mux.Vars(r)["json"]), &req)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	component := m.findComponentOr404(w, req.CompName)
	if component == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(component)
	serializer.SetMaxDepth(1)

	err = serializer.SetEntryPoint(strings.Split(req.FieldName, "."))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	err = serializer.Serialize(w)
	dieOnErr(err)
}

type channelRsp struct {
	Channel    string  `json:"channel"`
	Request    string  `json:"request"`
	IRQLine    int     `json:"irq_line"`
	Status     string  `json:"status"`
	Configured bool    `json:"configured"`
	Direction  string  `json:"direction,omitempty"`
	Width      string  `json:"width,omitempty"`
	Mode       string  `json:"mode,omitempty"`
	Priority   string  `json:"priority,omitempty"`
	Count      uint16  `json:"count"`
	Remaining  uint16  `json:"remaining"`
	Callbacks  int     `json:"callbacks"`
	BusyTime   float64 `json:"busy_time"`
}

func (m *Monitor) listChannels(w http.ResponseWriter, _ *http.Request) {
	if m.driver == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	reports := m.driver.Report()
	rsp := make([]channelRsp, 0, len(reports))

	for _, r := range reports {
		c := channelRsp{
			Channel:    r.Channel.String(),
			Request:    r.Channel.Request().String(),
			IRQLine:    r.Channel.IRQLine(),
			Status:     r.Status.String(),
			Configured: r.Configured,
			Remaining:  r.Remaining,
			Callbacks:  r.Callbacks,
			BusyTime:   float64(m.BusyTime(r.Channel)),
		}

		if r.Configured {
			c.Direction = r.Request.Direction.String()
			c.Width = r.Request.Width.String()
			c.Mode = r.Request.Mode.String()
			c.Priority = r.Request.Priority.String()
			c.Count = r.Request.Count
		}

		rsp = append(rsp, c)
	}

	writeJSON(w, rsp)
}

type registerRsp struct {
	Channel int    `json:"channel"`
	CFGR    string `json:"cfgr"`
	CNTR    uint32 `json:"cntr"`
	PADDR   string `json:"paddr"`
	MADDR   string `json:"maddr"`
	Flags   string `json:"flags"`
}

func (m *Monitor) listRegisters(w http.ResponseWriter, _ *http.Request) {
	if m.hardware == nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	states := m.hardware.Snapshot()
	rsp := make([]registerRsp, 0, len(states))

	for _, s := range states {
		rsp = append(rsp, registerRsp{
			Channel: s.Channel,
			CFGR:    fmt.Sprintf("0x%08x", s.CFGR),
			CNTR:    s.CNTR,
			PADDR:   fmt.Sprintf("0x%08x", s.PADDR),
			MADDR:   fmt.Sprintf("0x%08x", s.MADDR),
			Flags:   fmt.Sprintf("0x%x", s.Flags),
		})
	}

	writeJSON(w, rsp)
}

func (m *Monitor) findComponentOr404(
	w http.ResponseWriter,
	name string,
) sim.Named {
	for _, c := range m.components {
		if c.Name() == name {
			return c
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("Component not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	pid := os.Getpid()
	process, err := process.NewProcess(int32(pid))
	dieOnErr(err)

	cpuPercent, err := process.CPUPercent()
	dieOnErr(err)

	memorySize, err := process.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memorySize.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)
		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(bytes)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		log.Panic(err)
	}
}
