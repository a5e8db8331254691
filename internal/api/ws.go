package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mediagrab/orchestrator/internal/hub"
	"github.com/mediagrab/orchestrator/internal/job"
)

const writeTimeout = 5 * time.Second

// progressFrame is the wire shape pushed to websocket clients.
type progressFrame struct {
	Status      job.Status `json:"status"`
	Progress    float64    `json:"progress"`
	Title       string     `json:"title,omitempty"`
	Error       string     `json:"error,omitempty"`
	DownloadURL string     `json:"download_url,omitempty"`
	Filename    string     `json:"filename,omitempty"`
	FileSize    int64      `json:"file_size,omitempty"`
}

func frameFrom(j job.Job) progressFrame {
	return progressFrame{
		Status:      j.Status,
		Progress:    j.Progress,
		Title:       j.Title,
		Error:       j.Error,
		DownloadURL: j.DownloadURL,
		Filename:    j.Filename,
		FileSize:    j.FileSize,
	}
}

type WSHandler struct {
	store    job.JobStore
	notifier *hub.Hub
}

func NewWSHandler(store job.JobStore, notifier *hub.Hub) *WSHandler {
	return &WSHandler{store: store, notifier: notifier}
}

// Subscribe upgrades the connection and pushes progress frames for one job
// until its terminal state, which is always the last frame sent. Closing the
// connection only detaches this observer; the job keeps running.
func (h *WSHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := h.store.Get(id); !ok {
		http.NotFound(w, r)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("ws: accept error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "goodbye")

	// Subscribe before reading the snapshot so no update can slip between
	// the two; duplicates are filtered below.
	sub := h.notifier.Subscribe(id)
	defer sub.Close()

	// CloseRead discards client frames (pollers send keepalives) and cancels
	// the context when the peer goes away.
	ctx := conn.CloseRead(r.Context())

	snap, ok := h.store.Get(id)
	if !ok {
		return
	}

	// Late joiners get the current snapshot first, then live pushes.
	if !h.send(ctx, conn, frameFrom(snap)) {
		return
	}
	if snap.Status.Terminal() {
		return
	}
	sent := snap

	for {
		select {
		case <-ctx.Done():
			return
		case update, open := <-sub.Updates():
			if !open {
				return
			}
			// Keep delivery monotone: drop anything older than the snapshot
			// already sent.
			if !update.Status.Terminal() && update.Progress <= sent.Progress && update.Status == sent.Status {
				continue
			}
			if !h.send(ctx, conn, frameFrom(update)) {
				return
			}
			if update.Status.Terminal() {
				return
			}
			sent = update
		}
	}
}

func (h *WSHandler) send(ctx context.Context, conn *websocket.Conn, frame progressFrame) bool {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := wsjson.Write(wctx, conn, frame); err != nil {
		if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
			log.Printf("ws: write error: %v", err)
		}
		return false
	}
	return true
}
