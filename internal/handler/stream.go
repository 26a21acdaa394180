package handler

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"niftyfeed/internal/store"
)

// StreamHandler pushes quote snapshots to browsers over SSE. It registers
// a single broadcast callback on the engine and fans out to per-connection
// channels; a slow client loses intermediate snapshots instead of stalling
// the publisher.
type StreamHandler struct {
	Feed Feed

	// MinInterval floors the delay between events per client. Zero means
	// 100ms.
	MinInterval time.Duration

	mu      sync.Mutex
	clients map[chan []store.Quote]struct{}
}

func (h *StreamHandler) Register(r *gin.Engine) {
	r.GET("/api/stream", h.stream)
	if h.Feed != nil {
		h.Feed.RegisterDataCallback(h.broadcast)
	}
}

func (h *StreamHandler) broadcast(snapshot []store.Quote) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- snapshot:
		default:
		}
	}
}

func (h *StreamHandler) subscribe() chan []store.Quote {
	ch := make(chan []store.Quote, 4)
	h.mu.Lock()
	if h.clients == nil {
		h.clients = make(map[chan []store.Quote]struct{})
	}
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *StreamHandler) unsubscribe(ch chan []store.Quote) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
}

// ClientCount reports the number of connected SSE clients.
func (h *StreamHandler) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// @Summary SSE stream of quote snapshots
// @Tags stream
// @Produce text/event-stream
// @Success 200 {string} string "snapshot events"
// @Router /api/stream [get]
func (h *StreamHandler) stream(c *gin.Context) {
	if h.Feed == nil {
		Error(c, http.StatusInternalServerError, "engine unavailable", nil)
		return
	}
	ch := h.subscribe()
	defer h.unsubscribe(ch)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	minEvery := h.MinInterval
	if minEvery <= 0 {
		minEvery = 100 * time.Millisecond
	}

	c.SSEvent("snapshot", h.Feed.GetMarketData())
	c.Writer.Flush()
	last := time.Now()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case snap := <-ch:
			if wait := minEvery - time.Since(last); wait > 0 {
				t := time.NewTimer(wait)
				select {
				case <-ctx.Done():
					t.Stop()
					return false
				case <-t.C:
				}
			}
			// Deliver only the newest snapshot queued while throttled.
			for {
				select {
				case next := <-ch:
					snap = next
					continue
				default:
				}
				break
			}
			c.SSEvent("snapshot", snap)
			last = time.Now()
			return true
		}
	})
}
