package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/dchest/uniuri"
	"github.com/gorilla/websocket"

	"github.com/streamkit/mkvmux/internal/util"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins; players embed from anywhere
	},
}

// Handler provides the HTTP endpoints for live container streaming.
type Handler struct {
	broadcaster *Broadcaster
	contentType string
	started     time.Time
}

// NewHandler creates a streaming handler. contentType is the MIME type of
// the muxed stream ("video/webm" or "video/x-matroska").
func NewHandler(broadcaster *Broadcaster, contentType string) *Handler {
	return &Handler{
		broadcaster: broadcaster,
		contentType: contentType,
		started:     time.Now(),
	}
}

// Register registers the streaming routes with the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/stream", h.handleStream)
	mux.HandleFunc("/stream/ws", h.handleStreamWS)
	mux.HandleFunc("/stats", h.handleStats)
}

// handleStream serves the container stream over chunked HTTP.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	logger := util.GetLogger()

	w.Header().Set("Content-Type", h.contentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Transfer-Encoding", "chunked")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	subscriberID := util.GenerateRandomString(8) + "_http"
	dataCh := h.broadcaster.Subscribe(subscriberID, 64)
	defer h.broadcaster.Unsubscribe(subscriberID)

	logger.Info("http stream started", "subscriber", subscriberID, "remote", r.RemoteAddr)

	for {
		select {
		case data, ok := <-dataCh:
			if !ok {
				logger.Info("stream data channel closed", "subscriber", subscriberID)
				return
			}

			if _, err := w.Write(data); err != nil {
				logger.Warn("failed to write to http client", "subscriber", subscriberID, "error", err)
				return
			}

			// Flush each cluster immediately for low latency
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}

		case <-r.Context().Done():
			logger.Info("http stream client disconnected", "subscriber", subscriberID)
			return
		}
	}
}

// handleStreamWS serves the container stream as binary WebSocket messages,
// one message per init segment or cluster, for MSE players.
func (h *Handler) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	logger := util.GetLogger()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	subscriberID := uniuri.NewLen(8) + "_ws"
	dataCh := h.broadcaster.Subscribe(subscriberID, 64)
	defer h.broadcaster.Unsubscribe(subscriberID)

	logger.Info("websocket stream started", "subscriber", subscriberID, "remote", r.RemoteAddr)

	// Drain client messages so closure is noticed promptly.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				logger.Debug("websocket read ended", "subscriber", subscriberID, "error", err)
				return
			}
		}
	}()

	for {
		select {
		case data, ok := <-dataCh:
			if !ok {
				logger.Info("stream data channel closed", "subscriber", subscriberID)
				return
			}

			if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				logger.Warn("failed to write to websocket client", "subscriber", subscriberID, "error", err)
				return
			}

		case <-clientGone:
			logger.Info("websocket client disconnected", "subscriber", subscriberID)
			return

		case <-r.Context().Done():
			return
		}
	}
}

// handleStats reports broadcast counters as JSON.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	clusters, bytes := h.broadcaster.Stats()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"subscribers": h.broadcaster.SubscriberCount(),
		"clusters":    clusters,
		"bytes":       bytes,
		"uptime":      time.Since(h.started).Round(time.Second).String(),
	})
}
