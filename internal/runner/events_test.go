package runner_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lectern/internal/runner"
)

func publishLogs(hub *runner.Hub, lines ...string) {
	for _, line := range lines {
		hub.Publish(runner.Event{
			Kind: runner.KindLog,
			Log:  &runner.LogEvent{Stream: runner.StreamStdout, Line: line},
		})
	}
}

func TestHubAssignsSequenceAndTimestamp(t *testing.T) {
	hub := runner.NewHub(16)
	publishLogs(hub, "one", "two", "three")

	events, next := hub.Tail(10)
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}
	if next != 3 {
		t.Fatalf("expected next sequence 3, got %d", next)
	}
	for i, evt := range events {
		if evt.Sequence != uint64(i+1) {
			t.Fatalf("event %d has sequence %d", i, evt.Sequence)
		}
		if evt.Timestamp.IsZero() {
			t.Fatalf("event %d missing timestamp", i)
		}
	}
}

func TestHubFetchSince(t *testing.T) {
	hub := runner.NewHub(16)
	publishLogs(hub, "a", "b", "c", "d", "e")

	events, next, err := hub.Fetch(context.Background(), 2, 10, false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if next != 5 {
		t.Fatalf("expected next 5, got %d", next)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events after sequence 2, got %d", len(events))
	}
	if events[0].Sequence != 3 || events[2].Sequence != 5 {
		t.Fatalf("unexpected sequence range %d..%d", events[0].Sequence, events[2].Sequence)
	}
}

func TestHubFetchLimit(t *testing.T) {
	hub := runner.NewHub(16)
	publishLogs(hub, "a", "b", "c")

	events, next, err := hub.Fetch(context.Background(), 0, 2, false)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Sequence != 2 {
		t.Fatalf("expected second event sequence 2, got %d", events[1].Sequence)
	}
	if next != 2 {
		t.Fatalf("expected cursor to stop at the last returned event, got %d", next)
	}

	rest, next, err := hub.Fetch(context.Background(), next, 2, false)
	if err != nil {
		t.Fatalf("fetch rest: %v", err)
	}
	if len(rest) != 1 || rest[0].Sequence != 3 || next != 3 {
		t.Fatalf("expected the remaining event on the next page, got %d events next=%d", len(rest), next)
	}
}

func TestHubEvictsOldestAtCapacity(t *testing.T) {
	hub := runner.NewHub(3)
	publishLogs(hub, "a", "b", "c", "d", "e")

	events, next := hub.Tail(10)
	if next != 5 {
		t.Fatalf("expected next 5, got %d", next)
	}
	if len(events) != 3 {
		t.Fatalf("expected ring capped at 3, got %d", len(events))
	}
	if events[0].Sequence != 3 {
		t.Fatalf("expected oldest retained sequence 3, got %d", events[0].Sequence)
	}
	if events[0].Log == nil || events[0].Log.Line != "c" {
		t.Fatalf("unexpected oldest event %+v", events[0])
	}
}

func TestHubFetchWaitWakesOnPublish(t *testing.T) {
	hub := runner.NewHub(16)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan []runner.Event, 1)
	go func() {
		events, _, err := hub.Fetch(ctx, 0, 10, true)
		if err != nil {
			done <- nil
			return
		}
		done <- events
	}()

	time.Sleep(20 * time.Millisecond)
	publishLogs(hub, "wake")

	select {
	case events := <-done:
		if len(events) != 1 || events[0].Log.Line != "wake" {
			t.Fatalf("unexpected events %+v", events)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("fetch never woke up")
	}
}

func TestHubFetchWaitHonorsContext(t *testing.T) {
	hub := runner.NewHub(16)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, _, err := hub.Fetch(ctx, 0, 10, true)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []runner.Event
}

func (s *recordingSink) Append(evt runner.Event) {
	s.mu.Lock()
	s.events = append(s.events, evt)
	s.mu.Unlock()
}

func (s *recordingSink) snapshot() []runner.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]runner.Event(nil), s.events...)
}

func TestHubSinkReceivesEveryEvent(t *testing.T) {
	hub := runner.NewHub(16)
	sink := &recordingSink{}
	hub.AddSink(sink)

	publishLogs(hub, "a")
	hub.Publish(runner.Event{
		Kind:   runner.KindFinish,
		Finish: &runner.FinishEvent{Success: true, Message: "transcription complete"},
	})

	events := sink.snapshot()
	if len(events) != 2 {
		t.Fatalf("expected sink to see 2 events, got %d", len(events))
	}
	if events[0].Kind != runner.KindLog || events[1].Kind != runner.KindFinish {
		t.Fatalf("unexpected event kinds %s, %s", events[0].Kind, events[1].Kind)
	}
	if events[1].Sequence != 2 {
		t.Fatalf("sink event missing sequence, got %d", events[1].Sequence)
	}
}
