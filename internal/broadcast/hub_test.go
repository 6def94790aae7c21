package broadcast_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"frcvideos/internal/broadcast"
)

func TestNotifyAssociationUpdatedCarriesIdentityOnly(t *testing.T) {
	hub := broadcast.NewHub(8)
	hub.NotifyAssociationUpdated("2023gadal", "/videos/field/a.mp4")

	events, cursor := hub.Tail(10)
	if len(events) != 1 || cursor != 1 {
		t.Fatalf("expected one event at cursor 1, got %d events cursor %d", len(events), cursor)
	}
	evt := events[0]
	if evt.Name != broadcast.AssociationUpdated || evt.EventKey != "2023gadal" || evt.FilePath != "/videos/field/a.mp4" {
		t.Fatalf("unexpected event %+v", evt)
	}
	if evt.Timestamp.IsZero() {
		t.Fatal("expected timestamp to be stamped")
	}
}

func TestFetchSinceAndCapacity(t *testing.T) {
	hub := broadcast.NewHub(3)
	for i := 0; i < 5; i++ {
		hub.NotifyAssociationUpdated("2023gadal", "file")
	}

	events, cursor, err := hub.Fetch(context.Background(), 0, 0, false)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if cursor != 5 {
		t.Fatalf("expected cursor 5, got %d", cursor)
	}
	if len(events) != 3 || events[0].Sequence != 3 || events[2].Sequence != 5 {
		t.Fatalf("expected retained sequences 3..5, got %+v", events)
	}

	events, _, err = hub.Fetch(context.Background(), 4, 10, false)
	if err != nil {
		t.Fatalf("Fetch since: %v", err)
	}
	if len(events) != 1 || events[0].Sequence != 5 {
		t.Fatalf("expected only sequence 5, got %+v", events)
	}

	events, _, err = hub.Fetch(context.Background(), 5, 10, false)
	if err != nil || len(events) != 0 {
		t.Fatalf("expected no events past cursor, got %d err %v", len(events), err)
	}
}

func TestFetchWaitWakesOnPublish(t *testing.T) {
	hub := broadcast.NewHub(8)
	done := make(chan []broadcast.Event, 1)
	go func() {
		events, _, _ := hub.Fetch(context.Background(), 0, 10, true)
		done <- events
	}()

	time.Sleep(20 * time.Millisecond)
	hub.NotifyAssociationUpdated("2023gadal", "late.mp4")

	select {
	case events := <-done:
		if len(events) != 1 || events[0].FilePath != "late.mp4" {
			t.Fatalf("unexpected events %+v", events)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiting fetch did not wake")
	}
}

func TestFetchWaitHonorsCancellation(t *testing.T) {
	hub := broadcast.NewHub(8)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, _, err := hub.Fetch(ctx, 0, 10, true)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
