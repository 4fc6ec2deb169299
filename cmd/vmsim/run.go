package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/mem/vm/swap"
	"github.com/sarchlab/vmsim/simulation"
	"github.com/sarchlab/vmsim/tracing"
)

type runOptions struct {
	workload    string
	frames      int
	swapSlots   int
	swapFile    string
	pages       int
	record      bool
	recordTo    string
	monitor     bool
	monitorPort int
	open        bool
	verbose     bool
	traceFile   string
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run workloads against a virtual memory system",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runWorkloads(cmd.OutOrStdout(), runOpts)
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.workload, "workload",
		envString("VMSIM_WORKLOAD", "all"),
		"stack, mmap, fork, pressure or all")
	f.IntVar(&runOpts.frames, "frames",
		envInt("VMSIM_FRAMES", 16), "number of physical frames")
	f.IntVar(&runOpts.swapSlots, "swap-slots",
		envInt("VMSIM_SWAP_SLOTS", 256), "number of swap slots")
	f.StringVar(&runOpts.swapFile, "swap-file",
		envString("VMSIM_SWAP_FILE", ""),
		"file that backs the swap store; memory is used if empty")
	f.IntVar(&runOpts.pages, "pages",
		envInt("VMSIM_PAGES", 32), "number of pages each workload touches")
	f.BoolVar(&runOpts.record, "record", false,
		"record every event into a database")
	f.StringVar(&runOpts.recordTo, "record-to",
		envString("VMSIM_RECORD_TO", ""),
		"SQLite file name or clickhouse:// DSN of the recording")
	f.BoolVar(&runOpts.monitor, "monitor", false,
		"serve the state of the system over HTTP")
	f.IntVar(&runOpts.monitorPort, "monitor-port",
		envInt("VMSIM_MONITOR_PORT", 0), "port of the monitoring server")
	f.BoolVar(&runOpts.open, "open", false,
		"open the monitoring page in a browser")
	f.BoolVarP(&runOpts.verbose, "verbose", "v", false, "log every event")
	f.StringVar(&runOpts.traceFile, "trace", "",
		"write every event to this CSV file")

	rootCmd.AddCommand(runCmd)
}

func selectWorkloads(name string) ([]workload, error) {
	if name == "all" {
		return workloads, nil
	}

	w, found := findWorkload(name)
	if !found {
		return nil, fmt.Errorf("unknown workload %q", name)
	}

	return []workload{w}, nil
}

func buildSimulation(opts runOptions) *simulation.Simulation {
	b := simulation.MakeBuilder()

	if opts.monitor {
		b = b.WithMonitorPort(opts.monitorPort)
	} else {
		b = b.WithoutMonitoring()
	}

	if opts.record {
		b = b.WithRecordTarget(opts.recordTo)
	}

	return b.Build()
}

func buildSystem(
	opts runOptions,
	sched vm.Scheduler,
	swapDevice swap.Device,
) *vm.System {
	b := vm.MakeBuilder().
		WithNumFrames(opts.frames).
		WithNumSwapSlots(opts.swapSlots).
		WithScheduler(sched)

	if swapDevice != nil {
		b = b.WithSwapDevice(swapDevice)
	}

	return b.Build("VM")
}

func runWorkloads(out io.Writer, opts runOptions) (err error) {
	selected, err := selectWorkloads(opts.workload)
	if err != nil {
		return err
	}

	var swapDevice swap.Device
	if opts.swapFile != "" {
		var f *os.File
		f, err = swap.NewFileDevice(opts.swapFile,
			int64(opts.swapSlots)*int64(vm.PageSize))
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, f.Close()) }()

		swapDevice = f
	}

	sched := &scheduler{}
	system := buildSystem(opts, sched, swapDevice)

	if opts.traceFile != "" {
		f, err := os.Create(opts.traceFile)
		if err != nil {
			return err
		}
		defer f.Close()

		system.AcceptHook(vm.NewTracer(f))
	}

	s := buildSimulation(opts)
	defer func() {
		termErr := s.Terminate()
		if err == nil {
			err = termErr
		}
	}()

	s.RegisterSystem(system)
	recordOptions(s, opts)

	if opts.verbose {
		system.AcceptHook(vm.NewEventLogger(log.New(os.Stderr, "", 0)))
	}

	if opts.open && s.GetMonitor() != nil {
		err = s.GetMonitor().OpenInBrowser(s.MonitorPort())
		if err != nil {
			return err
		}
	}

	for _, w := range selected {
		env := &workloadEnv{
			system: system,
			sched:  sched,
			pages:  opts.pages,
			out:    out,
		}

		if m := s.GetMonitor(); m != nil {
			env.bar = m.CreateProgressBar(w.name, uint64(opts.pages))
		}

		err = w.run(env)

		if env.bar != nil {
			s.GetMonitor().CompleteProgressBar(env.bar)
		}

		if err != nil {
			return fmt.Errorf("workload %s: %w", w.name, err)
		}
	}

	printCounts(out, s.GetEventCounter())

	return nil
}

func recordOptions(s *simulation.Simulation, opts runOptions) {
	e := s.GetExecRecorder()
	if e == nil {
		return
	}

	e.Set("Workload", opts.workload)
	e.Set("Frames", strconv.Itoa(opts.frames))
	e.Set("Swap Slots", strconv.Itoa(opts.swapSlots))
	e.Set("Pages", strconv.Itoa(opts.pages))
}

func printCounts(out io.Writer, c *tracing.EventCounter) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EVENT\tCOUNT\tFAILED")

	for _, pos := range vm.HookPositions {
		fmt.Fprintf(w, "%s\t%d\t%d\n",
			pos.Name, c.GetCount(pos), c.GetFailureCount(pos))
	}

	w.Flush()
}
