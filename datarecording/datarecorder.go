// Package datarecording stores the records produced during a run in a
// database, so that they can be analyzed after the run.
package datarecording

import (
	"errors"
	"reflect"
	"sync"

	"github.com/fatih/structs"
)

// DataRecorder is a backend that can record and store data
type DataRecorder interface {
	// CreateTable creates a table whose columns are the fields of
	// sampleEntry.
	CreateTable(tableName string, sampleEntry any)

	// InsertData buffers an entry for a table that already exists.
	InsertData(tableName string, entry any)

	// ListTables returns the names of the tables created so far.
	ListTables() []string

	// Flush writes all the buffered entries into the database.
	Flush()

	// Close flushes and disconnects from the database.
	Close() error
}

const defaultBatchSize = 100000

// table buffers the entries of one table until the next flush.
type table struct {
	name       string
	structType reflect.Type
	entries    []any
}

// tableSet holds the bookkeeping shared by every backend.
type tableSet struct {
	lock       sync.Mutex
	tables     map[string]*table
	order      []string
	batchSize  int
	entryCount int
}

func newTableSet(batchSize int) *tableSet {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &tableSet{
		tables:    make(map[string]*table),
		batchSize: batchSize,
	}
}

// add registers a table. It panics if the entry has fields that cannot be
// stored in a column.
func (s *tableSet) add(tableName string, sampleEntry any) *table {
	err := checkStructFields(sampleEntry)
	if err != nil {
		panic(err)
	}

	t := &table{name: tableName, structType: reflect.TypeOf(sampleEntry)}
	s.tables[tableName] = t
	s.order = append(s.order, tableName)

	return t
}

// buffer appends an entry and reports whether a flush is due.
func (s *tableSet) buffer(tableName string, entry any) bool {
	t, exists := s.tables[tableName]
	if !exists {
		panic("table " + tableName + " does not exist")
	}

	if reflect.TypeOf(entry) != t.structType {
		panic("entry type does not match table " + tableName)
	}

	t.entries = append(t.entries, entry)
	s.entryCount++

	return s.entryCount >= s.batchSize
}

// pending returns the tables that have buffered entries, in creation order.
func (s *tableSet) pending() []*table {
	var list []*table

	for _, name := range s.order {
		if t := s.tables[name]; len(t.entries) > 0 {
			list = append(list, t)
		}
	}

	return list
}

func (s *tableSet) names() []string {
	return append([]string(nil), s.order...)
}

func isAllowedKind(kind reflect.Kind) bool {
	switch kind {
	case
		reflect.Bool,
		reflect.Int,
		reflect.Int8,
		reflect.Int16,
		reflect.Int32,
		reflect.Int64,
		reflect.Uint,
		reflect.Uint8,
		reflect.Uint16,
		reflect.Uint32,
		reflect.Uint64,
		reflect.Float32,
		reflect.Float64,
		reflect.String:
		return true
	default:
		return false
	}
}

func checkStructFields(entry any) error {
	if !structs.IsStruct(entry) {
		return errors.New("entry is not a struct")
	}

	for _, field := range structs.Fields(entry) {
		if !isAllowedKind(field.Kind()) {
			return errors.New("field " + field.Name() + " cannot be recorded")
		}
	}

	return nil
}

// fieldValues lists the exported field values of an entry in column order.
func fieldValues(entry any) []any {
	return structs.Values(entry)
}
