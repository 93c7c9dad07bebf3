package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/listingcast/api/internal/model"
)

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Send:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestHub_BroadcastProgress(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{JobID: "job-1", Send: make(chan []byte, 4)}
	other := &Client{JobID: "job-2", Send: make(chan []byte, 4)}
	hub.Register(client)
	hub.Register(other)

	hub.BroadcastProgress("job-1", model.Progress{
		Stage:        model.StageCapturing,
		Percent:      42,
		Message:      "Captured frame 2 of 5",
		CurrentFrame: 2,
		TotalFrames:  5,
	})

	var msg model.WSProgressMessage
	if err := json.Unmarshal(receive(t, client), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Type != model.WSMessageTypeProgress || msg.Percent != 42 || msg.Stage != model.StageCapturing {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.CurrentFrame != 2 || msg.TotalFrames != 5 {
		t.Errorf("expected frame 2 of 5, got %d of %d", msg.CurrentFrame, msg.TotalFrames)
	}

	select {
	case <-other.Send:
		t.Error("expected no message for another job")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_BroadcastError(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := &Client{JobID: "job-1", Send: make(chan []byte, 4)}
	hub.Register(client)
	if hub.Subscribers("job-1") != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.Subscribers("job-1"))
	}

	hub.BroadcastError("job-1", model.JobError{Code: "ENCODER_BUSY", Message: "busy"})

	var msg model.WSErrorMessage
	if err := json.Unmarshal(receive(t, client), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if msg.Error.Code != "ENCODER_BUSY" {
		t.Errorf("unexpected error code %s", msg.Error.Code)
	}

	hub.Unregister(client)
	if _, ok := <-client.Send; ok {
		t.Error("expected send channel closed after unregister")
	}
}
