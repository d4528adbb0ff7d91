package realtime

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestShouldSendAllEvents(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{AllEvents: true}}

	event := &Event{Type: EventFraudEvaluated, Data: map[string]any{"channelId": "ch1"}}
	if !h.shouldSend(client, event) {
		t.Error("all-events subscription should match everything")
	}
}

func TestShouldSendEventTypeFilter(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{EventTypes: []string{EventStateChanged}}}

	if h.shouldSend(client, &Event{Type: EventFraudEvaluated}) {
		t.Error("evaluation event should be filtered out")
	}
	if !h.shouldSend(client, &Event{Type: EventStateChanged}) {
		t.Error("state change event should pass")
	}
}

func TestShouldSendChannelFilter(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{ChannelIDs: []string{"ch1"}}}

	match := &Event{Type: EventFraudEvaluated, Data: map[string]any{"channelId": "ch1"}}
	other := &Event{Type: EventFraudEvaluated, Data: map[string]any{"channelId": "ch2"}}

	if !h.shouldSend(client, match) {
		t.Error("matching channel should pass")
	}
	if h.shouldSend(client, other) {
		t.Error("other channel should be filtered out")
	}
}

func TestShouldSendMinRiskScore(t *testing.T) {
	h := testHub()
	client := &Client{sub: Subscription{MinRiskScore: 50}}

	low := &Event{Type: EventFraudEvaluated, Data: map[string]any{"riskScore": 10.0}}
	high := &Event{Type: EventFraudEvaluated, Data: map[string]any{"riskScore": 80.0}}

	if h.shouldSend(client, low) {
		t.Error("low-risk evaluation should be filtered out")
	}
	if !h.shouldSend(client, high) {
		t.Error("high-risk evaluation should pass")
	}
}

func TestBroadcastReachesClient(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	client := &Client{hub: h, send: make(chan []byte, 16), sub: Subscription{AllEvents: true}}
	h.register <- client

	h.Broadcast(EventFraudEvaluated, map[string]any{"orderId": "o1", "riskScore": 75.0})

	select {
	case msg := <-client.send:
		if len(msg) == 0 {
			t.Error("empty broadcast payload")
		}
	case <-time.After(time.Second):
		t.Fatal("broadcast never reached client")
	}

	if h.Stats()["connectedClients"].(int) != 1 {
		t.Error("expected one connected client")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	h := testHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	// Unbuffered send channel with no reader: the first broadcast cannot be
	// delivered and the client must be evicted.
	client := &Client{hub: h, send: make(chan []byte), sub: Subscription{AllEvents: true}}
	h.register <- client

	h.Broadcast(EventFraudEvaluated, map[string]any{"orderId": "o1"})

	deadline := time.After(time.Second)
	for {
		if h.Stats()["connectedClients"].(int) == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("slow client was never dropped")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
