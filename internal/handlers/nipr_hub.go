package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"agentspace/models"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// VerificationHub is the single instance streaming job progress to clients.
var VerificationHub = NewProgressHub()

// ProgressEvent is one push message on a job's stream. Type is "progress",
// "completed" or "failed"; completed events carry the extracted carriers.
type ProgressEvent struct {
	Type          string   `json:"type"`
	JobID         string   `json:"jobId"`
	Progress      float64  `json:"progress"`
	Message       string   `json:"message"`
	QueuePosition int      `json:"queuePosition,omitempty"`
	Carriers      []string `json:"carriers,omitempty"`
	Error         string   `json:"error,omitempty"`
}

func (e ProgressEvent) terminal() bool {
	return e.Type == "completed" || e.Type == "failed"
}

type progressClient struct {
	hub   *ProgressHub
	conn  *websocket.Conn
	send  chan []byte
	jobID string
}

// ProgressHub fans job events out to every client watching that job. All map
// access happens in Run's goroutine via the three channels.
type ProgressHub struct {
	clients    map[string]map[*progressClient]bool
	publish    chan ProgressEvent
	register   chan *progressClient
	unregister chan *progressClient
	mu         sync.Mutex
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		clients:    make(map[string]map[*progressClient]bool),
		publish:    make(chan ProgressEvent, 64),
		register:   make(chan *progressClient),
		unregister: make(chan *progressClient),
	}
}

func (h *ProgressHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.jobID] == nil {
				h.clients[client.jobID] = make(map[*progressClient]bool)
			}
			h.clients[client.jobID][client] = true
			h.mu.Unlock()
			slog.Info("verification watcher registered", "job_id", client.jobID)

		case client := <-h.unregister:
			h.mu.Lock()
			if watchers, ok := h.clients[client.jobID]; ok {
				if _, ok := watchers[client]; ok {
					delete(watchers, client)
					close(client.send)
					if len(watchers) == 0 {
						delete(h.clients, client.jobID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.publish:
			h.broadcastEvent(event)
		}
	}
}

func (h *ProgressHub) broadcastEvent(event ProgressEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to marshal progress event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	watchers := h.clients[event.JobID]
	for client := range watchers {
		select {
		case client.send <- data:
		default:
			close(client.send)
			delete(watchers, client)
		}
	}
	// A terminal event ends the stream for everyone watching the job.
	if event.terminal() {
		for client := range watchers {
			close(client.send)
			delete(watchers, client)
		}
		delete(h.clients, event.JobID)
	}
}

// PublishProgress implements nipr.Notifier.
func (h *ProgressHub) PublishProgress(jobID string, progress float64, message string, queuePosition int) {
	h.publish <- ProgressEvent{
		Type:          "progress",
		JobID:         jobID,
		Progress:      progress,
		Message:       message,
		QueuePosition: queuePosition,
	}
}

// PublishCompleted implements nipr.Notifier.
func (h *ProgressHub) PublishCompleted(jobID string, result *models.VerificationResult) {
	event := ProgressEvent{
		Type:     "completed",
		JobID:    jobID,
		Progress: 1,
		Message:  "Verification complete",
	}
	if result != nil {
		event.Carriers = result.Carriers
	}
	h.publish <- event
}

// PublishFailed implements nipr.Notifier.
func (h *ProgressHub) PublishFailed(jobID string, reason string) {
	h.publish <- ProgressEvent{
		Type:    "failed",
		JobID:   jobID,
		Message: "Verification failed",
		Error:   reason,
	}
}

func (c *progressClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	// Watchers never send application messages; the read loop only notices
	// the connection closing.
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("unexpected websocket close", "error", err)
			}
			break
		}
	}
}

func (c *progressClient) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			slog.Error("failed to write progress event", "error", err)
			return
		}
	}
	// send closed: stream finished, tell the client cleanly.
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream complete"),
		time.Now().Add(time.Second))
}
