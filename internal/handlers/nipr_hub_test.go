package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"agentspace/models"
)

func recvEvent(t *testing.T, ch chan []byte) ProgressEvent {
	t.Helper()
	select {
	case data, ok := <-ch:
		if !ok {
			t.Fatal("send channel closed before event arrived")
		}
		var event ProgressEvent
		if err := json.Unmarshal(data, &event); err != nil {
			t.Fatalf("unmarshal event: %v", err)
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return ProgressEvent{}
}

func expectClosed(t *testing.T, ch chan []byte) {
	t.Helper()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected send channel to be closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}

func newWatcher(hub *ProgressHub, jobID string) *progressClient {
	client := &progressClient{hub: hub, send: make(chan []byte, 16), jobID: jobID}
	hub.register <- client
	return client
}

func TestProgressHubRoutesByJob(t *testing.T) {
	hub := NewProgressHub()
	go hub.Run()

	watcherA := newWatcher(hub, "job-a")
	watcherB := newWatcher(hub, "job-b")

	hub.PublishProgress("job-a", 0.3, "Retrieving license records", 2)

	event := recvEvent(t, watcherA.send)
	if event.Type != "progress" || event.JobID != "job-a" {
		t.Errorf("event = %+v", event)
	}
	if event.Progress != 0.3 || event.QueuePosition != 2 {
		t.Errorf("progress/position = %v/%d", event.Progress, event.QueuePosition)
	}

	select {
	case data := <-watcherB.send:
		t.Errorf("watcher of another job received %s", data)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestProgressHubTerminalClosesStream(t *testing.T) {
	hub := NewProgressHub()
	go hub.Run()

	watcher := newWatcher(hub, "job-1")
	hub.PublishCompleted("job-1", &models.VerificationResult{Carriers: []string{"Americo"}})

	event := recvEvent(t, watcher.send)
	if event.Type != "completed" || event.Progress != 1 {
		t.Errorf("event = %+v", event)
	}
	if len(event.Carriers) != 1 || event.Carriers[0] != "Americo" {
		t.Errorf("carriers = %v", event.Carriers)
	}
	expectClosed(t, watcher.send)
}

func TestProgressHubFailureEvent(t *testing.T) {
	hub := NewProgressHub()
	go hub.Run()

	watcher := newWatcher(hub, "job-2")
	hub.PublishFailed("job-2", "producer not found")

	event := recvEvent(t, watcher.send)
	if event.Type != "failed" || event.Error != "producer not found" {
		t.Errorf("event = %+v", event)
	}
	expectClosed(t, watcher.send)
}

func TestProgressHubUnregister(t *testing.T) {
	hub := NewProgressHub()
	go hub.Run()

	watcher := newWatcher(hub, "job-3")
	hub.unregister <- watcher
	expectClosed(t, watcher.send)

	// Publishing to a job with no watchers must not block or panic.
	hub.PublishProgress("job-3", 0.5, "still running", 0)
}
