package replicate

import (
	"errors"
	"fmt"
)

// ErrNoOutput is returned when a stream ends before producing any output.
var ErrNoOutput = errors.New("stream ended without output")

// PredictionError reports a prediction that reached a terminal status other than succeeded.
type PredictionError struct {
	ID     string
	Status string
	Detail string
}

func (e *PredictionError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("prediction %s %s", e.ID, e.Status)
	}
	return fmt.Sprintf("prediction %s %s: %s", e.ID, e.Status, e.Detail)
}

// StreamError carries an error event received on a prediction stream.
type StreamError struct {
	Data string
}

func (e *StreamError) Error() string {
	return "stream error: " + e.Data
}
