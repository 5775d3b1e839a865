package telegram

import (
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"

	"rembes-go/internal/conversation"
)

// dispatcher hands updates to workers so that one session's updates are
// handled one at a time in arrival order, while different sessions run in
// parallel. A session owns a worker only while it has pending updates.
type dispatcher struct {
	handle  func(tgbotapi.Update)
	workers *errgroup.Group

	mu      sync.Mutex
	pending map[conversation.SessionID][]tgbotapi.Update
}

func newDispatcher(limit int, handle func(tgbotapi.Update)) *dispatcher {
	d := &dispatcher{
		handle:  handle,
		workers: &errgroup.Group{},
		pending: make(map[conversation.SessionID][]tgbotapi.Update),
	}
	d.workers.SetLimit(limit)
	return d
}

// dispatch queues u behind earlier updates of the same session. It blocks
// while every worker is busy.
func (d *dispatcher) dispatch(id conversation.SessionID, u tgbotapi.Update) {
	d.mu.Lock()
	queue, running := d.pending[id]
	d.pending[id] = append(queue, u)
	d.mu.Unlock()
	if running {
		return
	}
	d.workers.Go(func() error {
		d.drain(id)
		return nil
	})
}

func (d *dispatcher) drain(id conversation.SessionID) {
	for {
		d.mu.Lock()
		queue := d.pending[id]
		if len(queue) == 0 {
			delete(d.pending, id)
			d.mu.Unlock()
			return
		}
		u := queue[0]
		d.pending[id] = queue[1:]
		d.mu.Unlock()

		d.handle(u)
	}
}

// wait blocks until every queued update has been handled.
func (d *dispatcher) wait() {
	d.workers.Wait()
}
