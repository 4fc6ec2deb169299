package datarecording

import "strings"

// RecorderConfig selects and configures a DataRecorder backend.
type RecorderConfig struct {
	// Type is "sqlite" or "clickhouse". SQLite is used if empty.
	Type string

	// Path is the SQLite file name without extension.
	Path string

	// ConnStr is the ClickHouse DSN.
	ConnStr string

	// BatchSize is the number of buffered entries that triggers a flush.
	BatchSize int
}

// ParseTarget turns a command-line recording target into a configuration.
// Targets starting with "clickhouse://" name a ClickHouse server; anything
// else is a SQLite file name.
func ParseTarget(target string) RecorderConfig {
	if strings.HasPrefix(target, "clickhouse://") {
		return RecorderConfig{Type: "clickhouse", ConnStr: target}
	}

	return RecorderConfig{Type: "sqlite", Path: target}
}

// NewWithConfig creates the DataRecorder described by c.
func NewWithConfig(c RecorderConfig) DataRecorder {
	switch c.Type {
	case "", "sqlite":
		return New(c.Path)
	case "clickhouse":
		return NewClickHouse(c.ConnStr, c.BatchSize)
	default:
		panic("unknown recorder type " + c.Type)
	}
}
