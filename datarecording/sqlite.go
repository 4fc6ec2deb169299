package datarecording

import (
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/structs"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// sqliteWriter is the writer that writes data into SQLite database
type sqliteWriter struct {
	*sql.DB
	*tableSet

	dbName string
}

// New creates a DataRecorder that writes into the SQLite file
// path+".sqlite3". An empty path picks a unique name. The buffered entries
// are flushed when the program exits through atexit.
func New(path string) DataRecorder {
	w := &sqliteWriter{
		dbName:   path,
		tableSet: newTableSet(defaultBatchSize),
	}

	w.init()

	atexit.Register(func() { w.Flush() })

	return w
}

// NewWithDB creates a DataRecorder that writes into an open SQLite database.
func NewWithDB(db *sql.DB) DataRecorder {
	w := &sqliteWriter{
		DB:       db,
		tableSet: newTableSet(defaultBatchSize),
	}

	atexit.Register(func() { w.Flush() })

	return w
}

func (w *sqliteWriter) init() {
	if w.dbName == "" {
		w.dbName = "vmsim_recording_" + xid.New().String()
	}

	filename := w.dbName + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	fmt.Fprintf(os.Stderr, "Database created for recording: %s\n", filename)

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	w.DB = db
}

func (w *sqliteWriter) CreateTable(tableName string, sampleEntry any) {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.add(tableName, sampleEntry)

	fields := strings.Join(structs.Names(sampleEntry), ", \n\t")
	w.mustExecute(`CREATE TABLE ` + tableName +
		` (` + "\n\t" + fields + "\n" + `);`)
}

func (w *sqliteWriter) InsertData(tableName string, entry any) {
	w.lock.Lock()
	defer w.lock.Unlock()

	if w.buffer(tableName, entry) {
		w.flushLocked()
	}
}

func (w *sqliteWriter) ListTables() []string {
	w.lock.Lock()
	defer w.lock.Unlock()

	return w.names()
}

func (w *sqliteWriter) Flush() {
	w.lock.Lock()
	defer w.lock.Unlock()

	w.flushLocked()
}

func (w *sqliteWriter) Close() error {
	w.Flush()
	return w.DB.Close()
}

func (w *sqliteWriter) flushLocked() {
	if w.entryCount == 0 {
		return
	}

	w.mustExecute("BEGIN TRANSACTION")
	defer w.mustExecute("COMMIT TRANSACTION")

	for _, t := range w.pending() {
		stmt := w.prepareStatement(t)

		for _, entry := range t.entries {
			_, err := stmt.Exec(fieldValues(entry)...)
			if err != nil {
				panic(err)
			}
		}

		t.entries = nil

		stmt.Close()
	}

	w.entryCount = 0
}

func (w *sqliteWriter) mustExecute(query string) sql.Result {
	res, err := w.Exec(query)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to execute: %s\n", query)
		panic(err)
	}

	return res
}

func (w *sqliteWriter) prepareStatement(t *table) *sql.Stmt {
	marks := structs.Names(t.entries[0])
	for i := range marks {
		marks[i] = "?"
	}

	sqlStr := "INSERT INTO " + t.name +
		" VALUES (" + strings.Join(marks, ", ") + ")"

	stmt, err := w.Prepare(sqlStr)
	if err != nil {
		panic(err)
	}

	return stmt
}
