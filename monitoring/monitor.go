// Package monitoring serves the state of running virtual memory systems over
// HTTP.
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
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/monitoring/web"
	"github.com/sarchlab/vmsim/sim"
	"github.com/sarchlab/vmsim/tracing"
)

// Monitor turns a running program into a server that reports the frames,
// swap and address spaces of its virtual memory systems.
type Monitor struct {
	portNumber  int
	idGenerator sim.IDGenerator

	lock    sync.Mutex
	systems []*vm.System
	counter *tracing.EventCounter

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar
}

// NewMonitor creates a new Monitor
func NewMonitor() *Monitor {
	return &Monitor{idGenerator: sim.NewUniqueIDGenerator()}
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

// RegisterSystem registers a virtual memory system to be monitored.
func (m *Monitor) RegisterSystem(s *vm.System) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.systems = append(m.systems, s)
}

// RegisterCounter sets the event counter reported by /api/stats.
func (m *Monitor) RegisterCounter(c *tracing.EventCounter) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.counter = c
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        m.idGenerator.Generate(),
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

// Handler returns the HTTP handler that serves the API and the web page.
func (m *Monitor) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/systems", m.listSystems)
	r.HandleFunc("/api/frames/{system}", m.listFrames)
	r.HandleFunc("/api/swap/{system}", m.swapUsage)
	r.HandleFunc("/api/spaces/{system}", m.listSpaces)
	r.HandleFunc("/api/space/{system}/{asid:[0-9]+}", m.spaceDetails)
	r.HandleFunc("/api/stats", m.listStats)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts the monitor as a web server and returns the port it
// listens on.
func (m *Monitor) StartServer() int {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	dieOnErr(err)

	port := listener.Addr().(*net.TCPAddr).Port

	fmt.Fprintf(os.Stderr,
		"Monitoring virtual memory with http://localhost:%d\n", port)

	handler := m.Handler()

	go func() {
		err := http.Serve(listener, handler)
		dieOnErr(err)
	}()

	return port
}

// OpenInBrowser opens the monitor page served on the given port.
func (m *Monitor) OpenInBrowser(port int) error {
	return browser.OpenURL(fmt.Sprintf("http://localhost:%d", port))
}

func (m *Monitor) listSystems(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	names := make([]string, 0, len(m.systems))
	for _, s := range m.systems {
		names = append(names, s.Name())
	}
	m.lock.Unlock()

	writeJSON(w, names)
}

func (m *Monitor) listFrames(w http.ResponseWriter, r *http.Request) {
	s := m.findSystemOr404(w, r)
	if s == nil {
		return
	}

	writeJSON(w, frameRsp{
		Total:  s.Frames().NumFrames(),
		Frames: s.Frames().Layout(),
	})
}

type frameRsp struct {
	Total  int            `json:"total"`
	Frames []vm.FrameInfo `json:"frames"`
}

type swapRsp struct {
	Slots int `json:"slots"`
	Used  int `json:"used"`
}

func (m *Monitor) swapUsage(w http.ResponseWriter, r *http.Request) {
	s := m.findSystemOr404(w, r)
	if s == nil {
		return
	}

	writeJSON(w, swapRsp{
		Slots: s.Swap().NumSlots(),
		Used:  s.Swap().NumUsed(),
	})
}

type spaceRsp struct {
	ASID  vm.ASID `json:"asid"`
	Pages int     `json:"pages"`
}

func (m *Monitor) listSpaces(w http.ResponseWriter, r *http.Request) {
	s := m.findSystemOr404(w, r)
	if s == nil {
		return
	}

	spaces := []spaceRsp{}
	for _, as := range s.AddressSpaces() {
		spaces = append(spaces, spaceRsp{ASID: as.ID(), Pages: as.SPT().Len()})
	}

	writeJSON(w, spaces)
}

func (m *Monitor) spaceDetails(w http.ResponseWriter, r *http.Request) {
	s := m.findSystemOr404(w, r)
	if s == nil {
		return
	}

	asid, err := strconv.ParseUint(mux.Vars(r)["asid"], 10, 32)
	dieOnErr(err)

	as, found := s.AddressSpace(vm.ASID(asid))
	if !found {
		w.WriteHeader(http.StatusNotFound)
		_, err = w.Write([]byte("Address space not found"))
		dieOnErr(err)

		return
	}

	info := as.Info()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(&info)
	serializer.SetMaxDepth(3)
	err = serializer.Serialize(w)
	dieOnErr(err)
}

type statsRsp struct {
	Counts   map[string]uint64 `json:"counts"`
	Failures map[string]uint64 `json:"failures"`
}

func (m *Monitor) listStats(w http.ResponseWriter, _ *http.Request) {
	m.lock.Lock()
	counter := m.counter
	m.lock.Unlock()

	rsp := statsRsp{
		Counts:   make(map[string]uint64),
		Failures: make(map[string]uint64),
	}

	if counter != nil {
		for _, pos := range vm.HookPositions {
			rsp.Counts[pos.Name] = counter.GetCount(pos)
			rsp.Failures[pos.Name] = counter.GetFailureCount(pos)
		}
	}

	writeJSON(w, rsp)
}

func (m *Monitor) findSystemOr404(
	w http.ResponseWriter,
	r *http.Request,
) *vm.System {
	name := mux.Vars(r)["system"]

	m.lock.Lock()
	defer m.lock.Unlock()

	for _, s := range m.systems {
		if s.Name() == name {
			return s
		}
	}

	w.WriteHeader(http.StatusNotFound)
	_, err := w.Write([]byte("System not found"))
	dieOnErr(err)

	return nil
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	bars := make([]progressBarRsp, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}

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
	dieOnErr(err)

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
