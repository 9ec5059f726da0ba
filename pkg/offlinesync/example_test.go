package offlinesync_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bft-labs/offlinesync/pkg/offlinesync"
)

// ExampleNew shows how to embed the sync service in an application.
func ExampleNew() {
	dir, err := os.MkdirTemp("", "offlinesync-example")
	if err != nil {
		fmt.Printf("temp dir: %v\n", err)
		return
	}
	defer os.RemoveAll(dir)

	cfg := offlinesync.DefaultConfig()
	cfg.DBPath = filepath.Join(dir, "offlinesync.db")
	cfg.BaseURL = "https://api.example.com"
	cfg.StartOffline = true

	svc, err := offlinesync.New(cfg)
	if err != nil {
		fmt.Printf("failed to create service: %v\n", err)
		return
	}
	defer svc.Close()

	if err := svc.Start(context.Background()); err != nil {
		fmt.Printf("failed to start: %v\n", err)
		return
	}
	fmt.Println("Status:", svc.Status())

	// Offline writes land in the local store and the queue.
	_, err = svc.Client().SaveJournalOffline(context.Background(), offlinesync.JournalEntry{
		ID:       "j-1",
		Username: "alice",
		Title:    "Monday",
		Content:  "Walked by the river.",
	})
	if err != nil {
		fmt.Printf("save: %v\n", err)
		return
	}

	stats, _ := svc.Stats(context.Background())
	fmt.Println("Pending:", stats.Total)

	_ = svc.Stop()

	// Output:
	// Status: Running
	// Pending: 1
}

// Example_withEventHandler shows how to observe deliveries and dead letters.
func Example_withEventHandler() {
	dir, err := os.MkdirTemp("", "offlinesync-example")
	if err != nil {
		fmt.Printf("temp dir: %v\n", err)
		return
	}
	defer os.RemoveAll(dir)

	cfg := offlinesync.DefaultConfig()
	cfg.DBPath = filepath.Join(dir, "offlinesync.db")
	cfg.BaseURL = "https://api.example.com"

	svc, err := offlinesync.New(cfg, offlinesync.WithEventHandler(&logHandler{}))
	if err != nil {
		fmt.Printf("failed to create service: %v\n", err)
		return
	}
	_ = svc.Close()
}

type logHandler struct {
	offlinesync.BaseEventHandler
}

func (h *logHandler) OnDelivered(e offlinesync.DeliveredEvent) {
	fmt.Printf("delivered %s in %v\n", e.Item.ID, e.Latency)
}

func (h *logHandler) OnDeadLetter(e offlinesync.DeadLetterEvent) {
	fmt.Printf("dead letter %s: %s\n", e.DeadLetter.Item.ID, e.DeadLetter.Reason)
}
