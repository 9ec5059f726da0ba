// Package offlinesync provides an embeddable offline-first sync service.
//
// Writes land in an on-device SQLite database before any network attempt.
// Mutations that cannot be delivered are kept in a durable, priority-ordered
// queue and replayed when connectivity returns. Delivered records are
// reconciled against the server's copy.
//
// # Basic Usage
//
//	cfg := offlinesync.DefaultConfig()
//	cfg.DBPath = "/var/lib/app/offlinesync.db"
//	cfg.BaseURL = "https://api.example.com"
//	cfg.TokenFile = "/var/lib/app/token.json"
//
//	svc, err := offlinesync.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close()
//
//	if err := svc.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := svc.Client().SaveJournalOffline(ctx, offlinesync.JournalEntry{
//	    ID:       "j-1",
//	    Username: "alice",
//	    Content:  "...",
//	})
//
// # Connectivity
//
// The service starts in the state given by [Config.StartOffline]. Hosts that
// know their connectivity call [Service.SetOnline]; otherwise register the
// netprobe plugin to derive it from HTTP probes.
//
// # Events
//
// Implement [EventHandler] (embedding [BaseEventHandler] for the callbacks
// you do not need) and pass it via [WithEventHandler]. Callbacks run on the
// goroutine that produced the event and should return quickly.
//
// # Plugins
//
//	import "github.com/bft-labs/offlinesync/plugins/netprobe"
//	import "github.com/bft-labs/offlinesync/plugins/periodicsync"
//	import "github.com/bft-labs/offlinesync/plugins/tokenwatcher"
//
//	svc, err := offlinesync.New(cfg,
//	    netprobe.WithNetProbe(netprobe.DefaultConfig()),
//	    periodicsync.WithPeriodicSync(periodicsync.DefaultConfig()),
//	    tokenwatcher.WithTokenWatcher(tokenwatcher.DefaultConfig()),
//	)
//
// # Lifecycle States
//
// A Service is in one of [StateStopped], [StateStarting], [StateRunning],
// [StateStopping] or [StateCrashed]. The durable store is open from New until
// Close, so queue inspection works without Start.
package offlinesync
