package tracing

import (
	"sync"

	"github.com/sarchlab/vmsim/datarecording"
	"github.com/sarchlab/vmsim/mem/vm"
	"github.com/sarchlab/vmsim/sim"
)

// EventTable is the table a DBTracer writes into.
const EventTable = "vm_event"

// EventEntry is one row of the event table.
type EventEntry struct {
	ID     string
	Seq    uint64
	Domain string
	Pos    string
	ASID   uint32
	VAddr  uint64
	Frame  int64
	Slot   int64
	Length uint64
	Write  bool
	User   bool
	Stack  bool
	Error  string
}

// DBTracer is a tracer that stores events into a database through a
// DataRecorder.
type DBTracer struct {
	lock        sync.Mutex
	domain      string
	backend     datarecording.DataRecorder
	idGenerator sim.IDGenerator
	seq         uint64
}

// NewDBTracer creates a DBTracer that writes the events of the named domain.
// The event table is created in the backend.
func NewDBTracer(
	domain string,
	backend datarecording.DataRecorder,
	idGenerator sim.IDGenerator,
) *DBTracer {
	backend.CreateTable(EventTable, EventEntry{})

	return &DBTracer{
		domain:      domain,
		backend:     backend,
		idGenerator: idGenerator,
	}
}

// RecordEvent buffers one row in the backend.
func (t *DBTracer) RecordEvent(pos *sim.HookPos, page *vm.Page, evt vm.Event) {
	t.lock.Lock()
	t.seq++
	seq := t.seq
	t.lock.Unlock()

	entry := EventEntry{
		ID:     t.idGenerator.Generate(),
		Seq:    seq,
		Domain: t.domain,
		Pos:    pos.Name,
		ASID:   uint32(evt.ASID),
		VAddr:  evt.VAddr,
		Frame:  int64(evt.Frame),
		Slot:   -1,
		Length: evt.Length,
		Write:  evt.Write,
		User:   evt.User,
	}

	if pos == vm.HookPosSwapOut || pos == vm.HookPosSwapIn {
		entry.Slot = int64(evt.Slot)
	}

	if page != nil {
		entry.Stack = page.IsStack()
	}

	if evt.Err != nil {
		entry.Error = evt.Err.Error()
	}

	t.backend.InsertData(EventTable, entry)
}

// Flush writes the buffered rows.
func (t *DBTracer) Flush() {
	t.backend.Flush()
}
