package main

import (
	"context"
	"log/slog"

	"github.com/utilitywarehouse/git-push-mirror/internal/lock"
	"github.com/utilitywarehouse/git-push-mirror/mirror"
)

type requestSource interface {
	MirrorRequests(id int64) []mirror.Request
}

type batchProcessor interface {
	Process(ctx context.Context, requests []mirror.Request) error
}

// pushQueue funnels push events into a single consumer so that mirror
// batches never run in parallel. a repository id which is already pending
// is not queued again.
type pushQueue struct {
	lock    lock.Mutex
	pending []int64
	queued  map[int64]bool
	notify  chan struct{}

	requests  requestSource
	processor batchProcessor
	log       *slog.Logger
}

func newPushQueue(requests requestSource, processor batchProcessor, log *slog.Logger) *pushQueue {
	if log == nil {
		log = slog.Default()
	}
	return &pushQueue{
		queued:    make(map[int64]bool),
		notify:    make(chan struct{}, 1),
		requests:  requests,
		processor: processor,
		log:       log,
	}
}

// Enqueue adds repository id to the queue. it returns false if the id
// is already waiting to be processed.
func (q *pushQueue) Enqueue(id int64) bool {
	q.lock.Lock()
	defer q.lock.Unlock()

	if q.queued[id] {
		return false
	}
	q.queued[id] = true
	q.pending = append(q.pending, id)

	// notify is buffered so a single signal covers all ids added
	// while consumer is busy
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Len returns number of repository ids waiting to be processed
func (q *pushQueue) Len() int {
	q.lock.Lock()
	defer q.lock.Unlock()

	return len(q.pending)
}

func (q *pushQueue) next() (int64, bool) {
	q.lock.Lock()
	defer q.lock.Unlock()

	if len(q.pending) == 0 {
		return 0, false
	}
	id := q.pending[0]
	q.pending = q.pending[1:]
	// id is released before processing so that a push received
	// during the run queues another one
	delete(q.queued, id)
	return id, true
}

// Run processes queued ids one at a time until context is cancelled.
func (q *pushQueue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		}

		for ctx.Err() == nil {
			id, ok := q.next()
			if !ok {
				break
			}
			q.push(ctx, id)
		}
	}
}

func (q *pushQueue) push(ctx context.Context, id int64) {
	reqs := q.requests.MirrorRequests(id)
	if len(reqs) == 0 {
		q.log.Debug("no mirrors configured", "repo-id", id)
		return
	}

	q.log.Debug("processing mirror requests", "repo-id", id, "mirrors", len(reqs))

	if err := q.processor.Process(ctx, reqs); err != nil {
		q.log.Error("mirror push failed", "repo-id", id, "err", err)
		return
	}
	q.log.Info("repository mirrored", "repo-id", id, "mirrors", len(reqs))
}
