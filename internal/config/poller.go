package config

import (
	"log/slog"
	"sync"
	"time"
)

// Poller periodically runs [Store.LoadAll] so flow edits on disk become
// visible without a restart. It uses mtime polling (not fsnotify) to keep
// dependencies minimal and to behave identically on network mounts.
type Poller struct {
	store    *Store
	interval time.Duration
	log      *slog.Logger

	done     chan struct{}
	stopOnce sync.Once
}

// NewPoller creates a poller over store. Call [Poller.Start] to begin
// probing; interval values below one second are raised to one second.
func NewPoller(store *Store, interval time.Duration) *Poller {
	if interval < time.Second {
		interval = time.Second
	}
	return &Poller{
		store:    store,
		interval: interval,
		log:      slog.With("component", "config"),
		done:     make(chan struct{}),
	}
}

// Start launches the background polling goroutine.
func (p *Poller) Start() {
	go p.run()
}

// Stop halts polling. Safe to call more than once.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
}

func (p *Poller) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			if err := p.store.LoadAll(); err != nil {
				// Last good documents stay published; just surface the error.
				p.log.Error("reload failed", "err", err)
			}
		}
	}
}
