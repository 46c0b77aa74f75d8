package plugin

import (
	"encoding/json"
	"strings"
	"time"
)

// MetricCode identifies one entry of the metric catalog.
type MetricCode int

// VariableRequest asks for one metric on one device. The host platform owns
// these; collectors only read them.
type VariableRequest struct {
	ID        string     `mapstructure:"id" json:"id" validate:"required"`
	Metric    MetricCode `mapstructure:"metric" json:"metric"`
	Parameter string     `mapstructure:"parameter" json:"parameter,omitempty"`
	// Path is the directory used by the listing metrics.
	Path string `mapstructure:"path" json:"path,omitempty"`
}

// SampleResult is one collected value. Value is a float64, bool, string or nil.
type SampleResult struct {
	VariableID string
	Timestamp  time.Time
	Value      any
	Err        error
}

// MarshalJSON renders the timestamp as unix milliseconds and the error as its kind.
func (r SampleResult) MarshalJSON() ([]byte, error) {
	out := struct {
		VariableID string `json:"variable_id"`
		Timestamp  int64  `json:"timestamp"`
		Value      any    `json:"value"`
		Error      string `json:"error,omitempty"`
		Detail     string `json:"detail,omitempty"`
	}{
		VariableID: r.VariableID,
		Timestamp:  r.Timestamp.UnixMilli(),
		Value:      r.Value,
	}
	if r.Err != nil {
		out.Error = ErrorKind(r.Err)
		out.Detail = r.Err.Error()
	}
	return json.Marshal(out)
}

// FileInfo is the subset of file metadata the filesystem metrics need.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
}

// CommandResult is the outcome of a command run by an Executor.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// UPSStatus is one reading of an APC UPS. Nil fields were not reported.
type UPSStatus struct {
	Status         string
	LineVoltage    *float64
	BatteryVoltage *float64
	BatteryCharge  *float64
	TimeLeft       *float64 // minutes
	Load           *float64 // percent
}

// Online reports whether the UPS runs from line power.
func (s UPSStatus) Online() bool {
	return strings.Contains(strings.ToUpper(s.Status), "ONLINE")
}
