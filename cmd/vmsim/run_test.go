package main

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/swap"
)

var _ = Describe("Run", func() {
	var (
		out  *bytes.Buffer
		opts runOptions
	)

	BeforeEach(func() {
		out = new(bytes.Buffer)
		opts = runOptions{
			workload:  "all",
			frames:    4,
			swapSlots: 64,
			pages:     8,
		}
	})

	DescribeTable("workloads",
		func(name, summary string) {
			opts.workload = name

			Expect(runWorkloads(out, opts)).To(Succeed())
			Expect(out.String()).To(ContainSubstring(summary))
		},
		Entry("stack", "stack",
			"stack: pushed 8 pages, stray access killed the process"),
		Entry("mmap", "mmap", "mmap: wrote back 8 pages"),
		Entry("fork", "fork", "fork: child modified 8 pages"),
		Entry("pressure", "pressure", "pressure: 8 pages through 4 frames"),
	)

	It("should run every workload and print the counts", func() {
		Expect(runWorkloads(out, opts)).To(Succeed())

		Expect(out.String()).To(ContainSubstring("EVENT"))
		Expect(out.String()).To(MatchRegexp(`SwapOut\s+[1-9]`))
		Expect(out.String()).To(MatchRegexp(`FaultFailed\s+1\s+1`))
	})

	It("should reject unknown workloads", func() {
		opts.workload = "heap"

		Expect(runWorkloads(out, opts)).To(MatchError(ContainSubstring("heap")))
	})

	It("should fail when swap runs out", func() {
		opts.workload = "pressure"
		opts.swapSlots = 2

		Expect(runWorkloads(out, opts)).To(MatchError(swap.ErrFull))
	})

	It("should swap to a file", func() {
		opts.workload = "pressure"
		opts.swapFile = filepath.Join(GinkgoT().TempDir(), "swap")

		Expect(runWorkloads(out, opts)).To(Succeed())

		info, err := os.Stat(opts.swapFile)
		Expect(err).ToNot(HaveOccurred())
		Expect(info.Size()).To(Equal(int64(64) * int64(vm.PageSize)))
	})

	It("should close the swap file when the run ends", func() {
		fds, err := os.ReadDir("/proc/self/fd")
		if err != nil {
			Skip("no /proc/self/fd")
		}
		Expect(fds).NotTo(BeEmpty())

		opts.workload = "pressure"
		opts.swapFile = filepath.Join(GinkgoT().TempDir(), "swap")

		Expect(runWorkloads(out, opts)).To(Succeed())

		fds, err = os.ReadDir("/proc/self/fd")
		Expect(err).NotTo(HaveOccurred())
		for _, fd := range fds {
			target, _ := os.Readlink(filepath.Join("/proc/self/fd", fd.Name()))
			Expect(target).NotTo(Equal(opts.swapFile))
		}
	})

	It("should write a CSV trace", func() {
		opts.workload = "stack"
		opts.traceFile = filepath.Join(GinkgoT().TempDir(), "trace.csv")

		Expect(runWorkloads(out, opts)).To(Succeed())

		trace, err := os.ReadFile(opts.traceFile)
		Expect(err).ToNot(HaveOccurred())
		Expect(string(trace)).To(ContainSubstring("StackGrowth,"))
	})

	It("should record a run and report it", func() {
		recording := filepath.Join(GinkgoT().TempDir(), "run")
		opts.workload = "mmap"
		opts.record = true
		opts.recordTo = recording

		Expect(runWorkloads(out, opts)).To(Succeed())

		report := new(bytes.Buffer)
		reportCmd.SetOut(report)
		Expect(reportCmd.RunE(reportCmd, []string{recording + ".sqlite3"})).
			To(Succeed())

		Expect(report.String()).To(ContainSubstring("Mmap\t1\n"))
		Expect(report.String()).To(ContainSubstring("Munmap\t1\n"))
	})
})

var _ = Describe("Scheduler", func() {
	It("should report the stack top when nothing runs", func() {
		s := &scheduler{}

		Expect(s.CurrentAddressSpace()).To(BeNil())
		Expect(s.CurrentStackPointer()).To(Equal(vm.UserStackTop))

		s.TerminateCurrent(vm.ExitStatusKilled)
	})

	It("should record the exit status of the running process", func() {
		s := &scheduler{}
		p := &process{sp: 0x1000}
		s.run(p)

		Expect(s.CurrentStackPointer()).To(Equal(uint64(0x1000)))

		s.TerminateCurrent(vm.ExitStatusKilled)

		Expect(p.exited).To(BeTrue())
		Expect(p.status).To(Equal(vm.ExitStatusKilled))
		Expect(s.CurrentAddressSpace()).To(BeNil())
	})
})
