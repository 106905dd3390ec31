package users

import (
	"context"
	"sync"
)

// eventLocks hands out one lock per event id. Entries are dropped when the
// last holder releases them.
type eventLocks struct {
	mu    sync.Mutex
	locks map[int64]*eventLock
}

type eventLock struct {
	slot chan struct{}
	refs int
}

func newEventLocks() *eventLocks {
	return &eventLocks{locks: make(map[int64]*eventLock)}
}

// lock blocks until the event lock is held or ctx is done. The returned func
// releases it.
func (l *eventLocks) lock(ctx context.Context, eventID int64) (func(), error) {
	l.mu.Lock()
	el, ok := l.locks[eventID]
	if !ok {
		el = &eventLock{slot: make(chan struct{}, 1)}
		l.locks[eventID] = el
	}
	el.refs++
	l.mu.Unlock()

	select {
	case el.slot <- struct{}{}:
		return func() {
			<-el.slot
			l.unref(eventID, el)
		}, nil
	case <-ctx.Done():
		l.unref(eventID, el)
		return nil, ctx.Err()
	}
}

func (l *eventLocks) unref(eventID int64, el *eventLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	el.refs--
	if el.refs == 0 {
		delete(l.locks, eventID)
	}
}

func (l *eventLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
