package executor

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrIterationLimitExceeded is returned when the loop exhausts its
// iteration cap without a terminal answer.
var ErrIterationLimitExceeded = errors.New("iteration limit exceeded")

// ToolExecutionError describes a failed capability call. It never aborts the
// loop; it is rendered into the tool message instead.
type ToolExecutionError struct {
	Tool    string
	Message string
	Err     error
}

func (e *ToolExecutionError) Error() string {
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Message)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// JSON renders the error as the structured result fed back to the engine.
func (e *ToolExecutionError) JSON() string {
	body := map[string]interface{}{
		"error": map[string]string{
			"tool":    e.Tool,
			"message": e.Message,
		},
	}
	data, _ := json.Marshal(body)
	return string(data)
}

func toolError(tool string, err error) *ToolExecutionError {
	var te *ToolExecutionError
	if errors.As(err, &te) {
		return te
	}
	return &ToolExecutionError{Tool: tool, Message: err.Error(), Err: err}
}
