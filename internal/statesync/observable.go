package statesync

import (
	"sync"

	"github.com/slurmdash/slurmdash/internal/common/util"
)

// Observable is a push-based subscription holding the latest published
// value. Subscribers that fall behind are overwritten with the newest value
// rather than blocking the publisher; consumers always converge on the
// current state.
type Observable[T any] struct {
	mutex       sync.Mutex
	current     T
	subscribers map[string]chan T
}

func NewObservable[T any](initial T) *Observable[T] {
	return &Observable[T]{
		current:     initial,
		subscribers: map[string]chan T{},
	}
}

func (o *Observable[T]) Get() T {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.current
}

func (o *Observable[T]) Publish(value T) {
	o.mutex.Lock()
	o.current = value
	channels := make([]chan T, 0, len(o.subscribers))
	for _, ch := range o.subscribers {
		channels = append(channels, ch)
	}
	o.mutex.Unlock()

	for _, ch := range channels {
		select {
		case ch <- value:
		default:
			// Replace the stale pending value with the newest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- value:
			default:
			}
		}
	}
}

type Subscription[T any] struct {
	Id         string
	C          <-chan T
	observable *Observable[T]
}

func (s *Subscription[T]) Close() {
	s.observable.unsubscribe(s.Id)
}

func (o *Observable[T]) Subscribe() *Subscription[T] {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	id := util.NewULID()
	ch := make(chan T, 1)
	ch <- o.current
	o.subscribers[id] = ch
	return &Subscription[T]{Id: id, C: ch, observable: o}
}

func (o *Observable[T]) unsubscribe(id string) {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	delete(o.subscribers, id)
}
