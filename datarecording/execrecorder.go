package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecInfoTable is the table that describes the run itself.
const ExecInfoTable = "exec_info"

type execInfo struct {
	Property string
	Value    string
}

// ExecRecorder records when and how the program was started and when it
// ended.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []execInfo
}

// NewExecRecorder creates the exec_info table in the recorder.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	recorder.CreateTable(ExecInfoTable, execInfo{})

	return &ExecRecorder{recorder: recorder}
}

// Start notes the start time, the command line and the working directory.
func (e *ExecRecorder) Start() {
	e.entries = append(e.entries,
		execInfo{"Start Time", timestamp()},
		execInfo{"Command", strings.Join(os.Args, " ")},
	)

	cwd, err := os.Getwd()
	if err == nil {
		e.entries = append(e.entries, execInfo{"Working Directory", cwd})
	}
}

// Set records an arbitrary property of the run, such as a configuration
// value.
func (e *ExecRecorder) Set(property, value string) {
	e.entries = append(e.entries, execInfo{property, value})
}

// End writes everything noted so far along with the end time.
func (e *ExecRecorder) End() {
	for _, entry := range e.entries {
		e.recorder.InsertData(ExecInfoTable, entry)
	}

	e.recorder.InsertData(ExecInfoTable, execInfo{"End Time", timestamp()})
	e.entries = nil

	e.recorder.Flush()
}

func timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05.000000000")
}
