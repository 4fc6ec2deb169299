package monitoring_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/monitoring"
	"github.com/sarchlab/vmsim/tracing"
)

var _ = Describe("Monitor", func() {
	var (
		system  *vm.System
		as      *vm.AddressSpace
		counter *tracing.EventCounter
		monitor *monitoring.Monitor
		handler http.Handler
	)

	get := func(url string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
		return rec
	}

	getJSON := func(url string, v any) {
		rec := get(url)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(json.Unmarshal(rec.Body.Bytes(), v)).To(Succeed())
	}

	BeforeEach(func() {
		system = vm.MakeBuilder().
			WithNumFrames(4).
			WithNumSwapSlots(8).
			Build("VM")
		counter = tracing.NewEventCounter()
		tracing.CollectTrace(system, counter)

		as = system.NewAddressSpace()
		_, err := system.SetupStack(as)
		Expect(err).ToNot(HaveOccurred())

		monitor = monitoring.NewMonitor()
		monitor.RegisterSystem(system)
		monitor.RegisterCounter(counter)
		handler = monitor.Handler()
	})

	It("should list systems", func() {
		var names []string
		getJSON("/api/systems", &names)

		Expect(names).To(Equal([]string{"VM"}))
	})

	It("should report frames", func() {
		var rsp struct {
			Total  int
			Frames []vm.FrameInfo
		}
		getJSON("/api/frames/VM", &rsp)

		Expect(rsp.Total).To(Equal(4))
		Expect(rsp.Frames).To(HaveLen(4))

		bound := 0
		for _, f := range rsp.Frames {
			if f.Bound {
				bound++
				Expect(f.ASID).To(Equal(as.ID()))
				Expect(f.VAddr).To(Equal(vm.UserStackTop - vm.PageSize))
			}
		}
		Expect(bound).To(Equal(1))
	})

	It("should report swap usage", func() {
		var rsp struct {
			Slots int
			Used  int
		}
		getJSON("/api/swap/VM", &rsp)

		Expect(rsp.Slots).To(Equal(8))
		Expect(rsp.Used).To(Equal(0))
	})

	It("should list address spaces", func() {
		var rsp []struct {
			ASID  vm.ASID
			Pages int
		}
		getJSON("/api/spaces/VM", &rsp)

		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].ASID).To(Equal(as.ID()))
		Expect(rsp[0].Pages).To(Equal(1))
	})

	It("should serialize an address space", func() {
		rec := get(fmt.Sprintf("/api/space/VM/%d", as.ID()))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("Pages"))
	})

	It("should return 404 for unknown systems and spaces", func() {
		Expect(get("/api/frames/Other").Code).To(Equal(http.StatusNotFound))
		Expect(get("/api/space/VM/999").Code).To(Equal(http.StatusNotFound))
	})

	It("should report event counts", func() {
		var rsp struct {
			Counts   map[string]uint64
			Failures map[string]uint64
		}
		getJSON("/api/stats", &rsp)

		Expect(rsp.Counts).To(HaveKeyWithValue(vm.HookPosClaim.Name, uint64(1)))
		Expect(rsp.Failures).To(HaveKeyWithValue(vm.HookPosClaim.Name, uint64(0)))
	})

	It("should report progress bars", func() {
		bar := monitor.CreateProgressBar("stack", 10)
		bar.IncrementInProgress(3)
		bar.MoveInProgressToFinished(2)

		var rsp []struct {
			Name       string
			Total      uint64
			Finished   uint64
			InProgress uint64 `json:"in_progress"`
		}
		getJSON("/api/progress", &rsp)

		Expect(rsp).To(HaveLen(1))
		Expect(rsp[0].Name).To(Equal("stack"))
		Expect(rsp[0].Total).To(Equal(uint64(10)))
		Expect(rsp[0].Finished).To(Equal(uint64(2)))
		Expect(rsp[0].InProgress).To(Equal(uint64(1)))

		monitor.CompleteProgressBar(bar)
		getJSON("/api/progress", &rsp)
		Expect(rsp).To(BeEmpty())
	})

	It("should report resource usage", func() {
		var rsp struct {
			MemorySize uint64 `json:"memory_size"`
		}
		getJSON("/api/resource", &rsp)

		Expect(rsp.MemorySize).To(BeNumerically(">", 0))
	})

	It("should serve the web page", func() {
		rec := get("/")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(HavePrefix("<!DOCTYPE html>"))
	})
})
