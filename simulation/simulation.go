// Package simulation bundles the services that surround a run of one or more
// virtual memory systems: event counting, recording and monitoring.
package simulation

import (
	"errors"

	"github.com/sarchlab/vmsim/datarecording"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/monitoring"
	"github.com/sarchlab/vmsim/sim"
	"github.com/sarchlab/vmsim/tracing"
)

// A Simulation provides the services that a run of virtual memory systems
// reports to.
type Simulation struct {
	id          string
	idGenerator sim.IDGenerator

	dataRecorder datarecording.DataRecorder
	execRecorder *datarecording.ExecRecorder
	monitor      *monitoring.Monitor
	monitorPort  int
	counter      *tracing.EventCounter
	dbTracers    []*tracing.DBTracer

	systems         []*vm.System
	systemNameIndex map[string]int
}

// ID returns the unique identifier of the run.
func (s *Simulation) ID() string {
	return s.id
}

// GetDataRecorder returns the data recorder, or nil if the run is not
// recorded.
func (s *Simulation) GetDataRecorder() datarecording.DataRecorder {
	return s.dataRecorder
}

// GetExecRecorder returns the recorder of the run information, or nil if the
// run is not recorded.
func (s *Simulation) GetExecRecorder() *datarecording.ExecRecorder {
	return s.execRecorder
}

// GetMonitor returns the monitor, or nil if monitoring is off.
func (s *Simulation) GetMonitor() *monitoring.Monitor {
	return s.monitor
}

// MonitorPort returns the port the monitor listens on, or 0 if monitoring is
// off.
func (s *Simulation) MonitorPort() int {
	return s.monitorPort
}

// GetEventCounter returns the counter that sees the events of every
// registered system.
func (s *Simulation) GetEventCounter() *tracing.EventCounter {
	return s.counter
}

// RegisterSystem attaches the counter, the recorder and the monitor to a
// virtual memory system.
func (s *Simulation) RegisterSystem(system *vm.System) {
	name := system.Name()
	if _, found := s.systemNameIndex[name]; found {
		panic("system " + name + " already registered")
	}

	s.systems = append(s.systems, system)
	s.systemNameIndex[name] = len(s.systems) - 1

	tracing.CollectTrace(system, s.counter)

	if s.dataRecorder != nil {
		tracer := tracing.NewDBTracer(name, s.dataRecorder, s.idGenerator)
		tracing.CollectTrace(system, tracer)
		s.dbTracers = append(s.dbTracers, tracer)
	}

	if s.monitor != nil {
		s.monitor.RegisterSystem(system)
	}
}

// GetSystemByName returns the registered system with the given name.
func (s *Simulation) GetSystemByName(name string) (*vm.System, bool) {
	i, found := s.systemNameIndex[name]
	if !found {
		return nil, false
	}

	return s.systems[i], true
}

// Systems returns every registered system in registration order.
func (s *Simulation) Systems() []*vm.System {
	return append([]*vm.System(nil), s.systems...)
}

// Terminate destroys the address spaces left in the registered systems,
// which writes back dirty mapped pages, and closes the recorder.
func (s *Simulation) Terminate() error {
	var errs []error

	for _, system := range s.systems {
		for _, as := range system.AddressSpaces() {
			errs = append(errs, system.DestroyAddressSpace(as))
		}
	}

	for _, t := range s.dbTracers {
		t.Flush()
	}

	if s.execRecorder != nil {
		s.execRecorder.End()
	}

	if s.dataRecorder != nil {
		errs = append(errs, s.dataRecorder.Close())
	}

	return errors.Join(errs...)
}
