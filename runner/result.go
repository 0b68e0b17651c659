package runner

import (
	"encoding/json"
	"time"
)

// RunResult is the outcome of a successful child execution: a
// well-formed result was recovered from the sentinel-delimited block
// in stdout before the wall-clock timeout elapsed.
type RunResult struct {
	Value         json.RawMessage
	Stdout        string
	Stderr        string
	ExitCode      int
	ExecutionTime time.Duration
	ContainerID   string
}

// runResultJSON is the wire form of RunResult: execution time crosses
// the boundary as whole milliseconds, matching the field name.
type runResultJSON struct {
	Value           json.RawMessage `json:"value"`
	Stdout          string          `json:"stdout"`
	Stderr          string          `json:"stderr"`
	ExitCode        int             `json:"exit_code"`
	ExecutionTimeMS int64           `json:"execution_time_ms"`
	ContainerID     string          `json:"container_id,omitempty"`
}

func (r RunResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(runResultJSON{
		Value:           r.Value,
		Stdout:          r.Stdout,
		Stderr:          r.Stderr,
		ExitCode:        r.ExitCode,
		ExecutionTimeMS: r.ExecutionTime.Milliseconds(),
		ContainerID:     r.ContainerID,
	})
}

func (r *RunResult) UnmarshalJSON(data []byte) error {
	var wire runResultJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = RunResult{
		Value:         wire.Value,
		Stdout:        wire.Stdout,
		Stderr:        wire.Stderr,
		ExitCode:      wire.ExitCode,
		ExecutionTime: time.Duration(wire.ExecutionTimeMS) * time.Millisecond,
		ContainerID:   wire.ContainerID,
	}
	return nil
}

// ToolDefinition is the result of TS definition-extraction mode.
type ToolDefinition struct {
	Value  json.RawMessage `json:"value"`
	Stdout string          `json:"stdout"`
	Stderr string          `json:"stderr"`
}
