package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// storeWriter runs persistence write-throughs off the message path. Jobs
// for the same room execute in submission order on one goroutine, so
// persisted state cannot interleave within a room; failures are logged and
// swallowed, in-memory state stays authoritative.
type storeWriter struct {
	mu     sync.Mutex
	queues map[string]chan func(context.Context)
}

const writeTimeout = 5 * time.Second

func newStoreWriter() *storeWriter {
	return &storeWriter{queues: make(map[string]chan func(context.Context))}
}

func (w *storeWriter) enqueue(key string, job func(context.Context)) {
	w.mu.Lock()
	q, ok := w.queues[key]
	if !ok {
		q = make(chan func(context.Context), 64)
		w.queues[key] = q
		go w.run(q)
	}
	w.mu.Unlock()

	select {
	case q <- job:
	default:
		log.Warn().Str("module", "app.writer").Str("key", key).Msg("write queue full, dropping write-through")
	}
}

func (w *storeWriter) run(q chan func(context.Context)) {
	for job := range q {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		job(ctx)
		cancel()
	}
}
