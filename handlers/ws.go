package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamMessages upgrades to a websocket and pushes the conversation to
// the rendering client: the current snapshot first, then every message as
// it is appended. The stream ends when the client disconnects or the
// session is torn down.
func (h *ChatHandler) StreamMessages(c *gin.Context) {
	sess, ok := h.lookup(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// Reader goroutine: the client sends nothing meaningful, but reading
	// is how we notice it going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Each round: watch, replay the snapshot, then relay live appends.
	// Watch comes first so nothing appended in between is lost; messages
	// present in both are skipped by id. The store closes a watcher that
	// lags too far behind, which lands back here for a fresh snapshot, so
	// a slow client catches up instead of missing messages.
	seen := make(map[uuid.UUID]struct{})
	for {
		updates, cancel := sess.Conv.Watch()
		for _, m := range sess.Conv.Messages() {
			if _, dup := seen[m.ID]; dup {
				continue
			}
			seen[m.ID] = struct{}{}
			if err := conn.WriteJSON(m); err != nil {
				cancel()
				return
			}
		}

		live := true
		for live {
			select {
			case m, open := <-updates:
				if !open {
					live = false
					break
				}
				if _, dup := seen[m.ID]; dup {
					continue
				}
				seen[m.ID] = struct{}{}
				if err := conn.WriteJSON(m); err != nil {
					cancel()
					return
				}
			case <-gone:
				cancel()
				return
			}
		}
		cancel()
		if sess.Conv.Closed() {
			return
		}
	}
}
