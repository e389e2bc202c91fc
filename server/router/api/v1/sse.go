package v1

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// sseWriter writes server-sent events and flushes after each one.
type sseWriter struct {
	response *echo.Response
}

// newSSEWriter sets the streaming headers and returns the writer.
func newSSEWriter(c echo.Context) *sseWriter {
	response := c.Response()
	header := response.Header()
	header.Set(echo.HeaderContentType, "text/event-stream")
	header.Set(echo.HeaderCacheControl, "no-cache")
	header.Set(echo.HeaderConnection, "keep-alive")
	header.Set("X-Accel-Buffering", "no")
	response.WriteHeader(http.StatusOK)
	return &sseWriter{response: response}
}

// WriteEvent emits one named event with a JSON payload.
func (w *sseWriter) WriteEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w.response, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	w.response.Flush()
	return nil
}
