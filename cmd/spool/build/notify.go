package buildcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spoolworks/spool/pkg/eventsource"
)

const notifyCloseTimeout = 5 * time.Second

// notifier streams build progress to a spool server's ingest endpoint as
// one long-lived SSE POST. The request body is a pipe the encoder writes
// into, so events reach the server as they happen rather than after the
// build finishes.
type notifier struct {
	mu   sync.Mutex
	enc  *eventsource.Encoder
	pw   *io.PipeWriter
	done chan error
}

// startNotifier opens the ingest request against serverURL for the named
// stream. The returned notifier must be closed to complete the POST.
func startNotifier(ctx context.Context, serverURL, stream string) (*notifier, error) {
	url := strings.TrimRight(serverURL, "/") + "/streams/" + stream + "/events"
	pr, pw := io.Pipe()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, pr)
	if err != nil {
		pw.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", "text/event-stream")

	n := &notifier{
		enc:  eventsource.NewEncoder(pw),
		pw:   pw,
		done: make(chan error, 1),
	}

	go func() {
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			// Unblock any writer stuck on the pipe.
			pr.CloseWithError(err)
			n.done <- err
			return
		}
		defer resp.Body.Close()
		io.Copy(io.Discard, resp.Body)

		if resp.StatusCode != http.StatusOK {
			n.done <- fmt.Errorf("notify target returned %s", resp.Status)
			return
		}
		n.done <- nil
	}()

	return n, nil
}

// emit writes one SSE message with the given event type and JSON payload.
func (n *notifier) emit(event string, payload buildEvent) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	return n.enc.WriteMessage(eventsource.Message{Event: event, Data: string(data)})
}

// Close ends the SSE stream and waits for the server's response.
func (n *notifier) Close() error {
	n.pw.Close()

	select {
	case err := <-n.done:
		return err
	case <-time.After(notifyCloseTimeout):
		return errors.New("timed out waiting for notify target")
	}
}
