package simulation

import (
	"github.com/sarchlab/vmsim/datarecording"
	"github.com/sarchlab/vmsim/monitoring"
	"github.com/sarchlab/vmsim/sim"
	"github.com/sarchlab/vmsim/tracing"
)

// Builder can be used to build a simulation.
type Builder struct {
	monitorOn    bool
	monitorPort  int
	recordOn     bool
	recordTarget string
	idGenerator  sim.IDGenerator
}

// MakeBuilder creates a new builder.
func MakeBuilder() Builder {
	return Builder{
		monitorOn: true,
	}
}

// WithoutMonitoring sets the simulation to not use monitoring.
func (b Builder) WithoutMonitoring() Builder {
	b.monitorOn = false
	return b
}

// WithMonitorPort sets the port number for the monitoring server.
func (b Builder) WithMonitorPort(port int) Builder {
	b.monitorPort = port
	return b
}

// WithRecordTarget turns recording on. The target is either a SQLite file
// name without extension or a clickhouse:// DSN. An empty target picks a
// unique SQLite file name.
func (b Builder) WithRecordTarget(target string) Builder {
	b.recordOn = true
	b.recordTarget = target

	return b
}

// WithIDGenerator sets the generator of event IDs. Unique IDs are used if not
// set.
func (b Builder) WithIDGenerator(g sim.IDGenerator) Builder {
	b.idGenerator = g
	return b
}

func (b Builder) parametersMustBeValid() {
	if !b.monitorOn && b.monitorPort != 0 {
		panic("monitor port cannot be set when monitoring is disabled")
	}
}

// Build builds the simulation.
func (b Builder) Build() *Simulation {
	b.parametersMustBeValid()

	s := &Simulation{
		idGenerator:     b.idGenerator,
		counter:         tracing.NewEventCounter(),
		systemNameIndex: make(map[string]int),
	}

	if s.idGenerator == nil {
		s.idGenerator = sim.NewUniqueIDGenerator()
	}

	s.id = s.idGenerator.Generate()

	if b.recordOn {
		target := b.recordTarget
		if target == "" {
			target = "vmsim_run_" + s.id
		}

		s.dataRecorder = datarecording.NewWithConfig(
			datarecording.ParseTarget(target))
		s.execRecorder = datarecording.NewExecRecorder(s.dataRecorder)
		s.execRecorder.Start()
	}

	if b.monitorOn {
		s.monitor = monitoring.NewMonitor().WithPortNumber(b.monitorPort)
		s.monitor.RegisterCounter(s.counter)
		s.monitorPort = s.monitor.StartServer()
	}

	return s
}
