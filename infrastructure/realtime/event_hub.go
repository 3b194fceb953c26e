package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"publish-pipeline/domain/model"
	"publish-pipeline/domain/repository"

	"github.com/gin-gonic/gin"
)

// allOwners keys subscribers that want every event.
const allOwners = ""

// Hub fans pipeline events out to server-sent event streams. Events without an
// owner (connectivity, drain summaries) reach every subscriber.
type Hub struct {
	mu     sync.RWMutex
	owners map[string]map[chan model.PipelineEvent]struct{}
}

var _ repository.IEventPublisher = (*Hub)(nil)

func NewEventHub() *Hub {
	return &Hub{owners: make(map[string]map[chan model.PipelineEvent]struct{})}
}

// Serve streams events for the owner named by the owner_id query parameter, or
// all events when it is absent.
func (h *Hub) Serve(c *gin.Context) {
	ownerID := c.Query("owner_id")
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no") // disable nginx buffering

	ch := make(chan model.PipelineEvent, 8)
	h.addSubscriber(ownerID, ch)
	defer h.removeSubscriber(ownerID, ch)

	_, _ = c.Writer.Write([]byte(":ok\n\n"))
	c.Writer.Flush()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case evt := <-ch:
			if err := writeEvent(c.Writer, evt); err != nil {
				return
			}
			c.Writer.Flush()
		}
	}
}

func writeEvent(w gin.ResponseWriter, evt model.PipelineEvent) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
	return err
}

func (h *Hub) addSubscriber(ownerID string, ch chan model.PipelineEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.owners[ownerID] == nil {
		h.owners[ownerID] = make(map[chan model.PipelineEvent]struct{})
	}
	h.owners[ownerID][ch] = struct{}{}
}

func (h *Hub) removeSubscriber(ownerID string, ch chan model.PipelineEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs := h.owners[ownerID]; subs != nil {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.owners, ownerID)
		}
	}
}

// Subscribers counts open streams.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, subs := range h.owners {
		n += len(subs)
	}
	return n
}

// PublishEvent never blocks: slow subscribers miss events.
func (h *Hub) PublishEvent(_ context.Context, evt model.PipelineEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	send := func(subs map[chan model.PipelineEvent]struct{}) {
		for ch := range subs {
			select {
			case ch <- evt:
			default:
			}
		}
	}
	send(h.owners[allOwners])
	if evt.OwnerID != "" {
		send(h.owners[evt.OwnerID])
	} else {
		for owner, subs := range h.owners {
			if owner != allOwners {
				send(subs)
			}
		}
	}
	return nil
}
