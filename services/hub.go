package services

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"
)

// ProgressHub fans supply/authoring progress events out to websocket clients
// subscribed to a job id. Events may arrive from overlapping fetch
// completions, so all access is serialized through the hub's lock.
type ProgressHub struct {
	mu      sync.Mutex
	clients map[string]map[*websocket.Conn]bool
}

func NewProgressHub() *ProgressHub {
	return &ProgressHub{
		clients: make(map[string]map[*websocket.Conn]bool),
	}
}

type progressEvent struct {
	Type    string      `json:"type"`
	JobID   string      `json:"job_id"`
	Payload interface{} `json:"payload"`
}

// Subscribe registers a connection for a job's events. The hub owns the
// connection from here on and closes it when the job is cleaned up.
func (h *ProgressHub) Subscribe(jobID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[jobID] == nil {
		h.clients[jobID] = make(map[*websocket.Conn]bool)
	}
	h.clients[jobID][conn] = true
	log.Printf("Client subscribed to job %s (%d listening)", jobID, len(h.clients[jobID]))
}

// Broadcast sends one event to every subscriber of a job. Dead connections
// are dropped on write failure.
func (h *ProgressHub) Broadcast(jobID, eventType string, payload interface{}) {
	data, err := json.Marshal(progressEvent{
		Type:    eventType,
		JobID:   jobID,
		Payload: payload,
	})
	if err != nil {
		log.Printf("Failed to marshal progress event for job %s: %v", jobID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients[jobID] {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("Dropping dead subscriber on job %s: %v", jobID, err)
			conn.Close()
			delete(h.clients[jobID], conn)
		}
	}
}

// Finish closes and forgets all subscribers of a finished job.
func (h *ProgressHub) Finish(jobID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.clients[jobID] {
		conn.Close()
	}
	delete(h.clients, jobID)
}
