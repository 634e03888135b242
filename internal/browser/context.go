package browser

import (
	"context"
	"encoding/json"
)

// combineContext ties two contexts together: the result carries the values,
// cancellation and deadline of the primary context and is additionally
// cancelled when the secondary context is done.
func combineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancel(primary)

	go func() {
		select {
		case <-secondary.Done():
			cancel()
		case <-combined.Done():
		}
	}()

	return combined, cancel
}

// jsonQuote renders s as a JSON string literal for safe embedding in a
// JavaScript expression.
func jsonQuote(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(b)
}
