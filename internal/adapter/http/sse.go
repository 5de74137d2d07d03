package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bnema/reel/internal/domain"
	"github.com/bnema/reel/internal/service"
)

const defaultKeepAlive = 15 * time.Second

type SSEHandler struct {
	eventBus  *service.EventBus
	videos    VideoService
	keepAlive time.Duration
}

func NewSSEHandler(eventBus *service.EventBus, videos VideoService) *SSEHandler {
	return &SSEHandler{
		eventBus:  eventBus,
		videos:    videos,
		keepAlive: defaultKeepAlive,
	}
}

// sseWrite writes an SSE event, handling multi-line data correctly.
func sseWrite(w http.ResponseWriter, eventName string, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\n", eventName)
	for _, line := range strings.Split(data, "\n") {
		_, _ = fmt.Fprintf(w, "data: %s\n", line)
	}
	_, _ = fmt.Fprint(w, "\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func sendKeepAlive(w http.ResponseWriter) {
	_, _ = fmt.Fprint(w, ": keep-alive\n\n")
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func stateKey(ev domain.StatusEvent) string {
	return string(ev.Status) + "\x00" + strconv.Itoa(ev.RetryCount) + "\x00" + ev.Message
}

// sendStatus writes ev unless it repeats the last state sent. It returns the
// key of the state the client now holds.
func sendStatus(w http.ResponseWriter, ev domain.StatusEvent, last string) (string, error) {
	key := stateKey(ev)
	if key == last {
		return last, nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return last, err
	}
	sseWrite(w, domain.EventTypeStatus, string(data))
	return key, nil
}

func currentState(video *domain.Video) domain.StatusEvent {
	ev := domain.NewStatusEvent(video.ID, video.Status, video.ErrorMessage, 0)
	ev.At = video.UpdatedAt.UTC()
	return ev
}

func (h *SSEHandler) Events() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")

		// Subscribe first so a transition between the read and the
		// subscription is not lost.
		ch := h.eventBus.Subscribe(id)
		defer h.eventBus.Unsubscribe(id, ch)

		video, err := h.videos.Get(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		last, err := sendStatus(w, currentState(video), "")
		if err != nil {
			return
		}

		ctx := r.Context()

		// Keep the stream open once terminal so EventSource does not reconnect.
		if video.Status.IsTerminal() {
			<-ctx.Done()
			return
		}

		keepAlive := time.NewTicker(h.keepAlive)
		defer keepAlive.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keepAlive.C:
				sendKeepAlive(w)
			case event, ok := <-ch:
				if !ok {
					return
				}
				if last, err = sendStatus(w, event, last); err != nil {
					return
				}
				if event.Status.IsTerminal() {
					<-ctx.Done()
					return
				}
			}
		}
	}
}
