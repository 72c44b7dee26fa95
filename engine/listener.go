package engine

import (
	"sync"
)

// QueryRecord identifies one statement executed by the engine.
type QueryRecord struct {
	ID   string
	Text string
}

// Listener is notified of every statement the engine executes, including those it generates
// itself. Listeners must be comparable; they are usually pointers.
type Listener interface {
	AddQuery(rec QueryRecord) error
}

// Listeners is a set of listeners; broadcasts visit them in the order they were registered.
type Listeners struct {
	mutex     sync.Mutex
	listeners []Listener
}

func (ls *Listeners) Register(l Listener) {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	for _, l2 := range ls.listeners {
		if l2 == l {
			return
		}
	}
	ls.listeners = append(ls.listeners, l)
}

// Unregister removes l and returns whether or not it was registered.
func (ls *Listeners) Unregister(l Listener) bool {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	for ldx, l2 := range ls.listeners {
		if l2 == l {
			ls.listeners = append(ls.listeners[:ldx:ldx], ls.listeners[ldx+1:]...)
			return true
		}
	}
	return false
}

func (ls *Listeners) Len() int {
	ls.mutex.Lock()
	defer ls.mutex.Unlock()

	return len(ls.listeners)
}

// Broadcast calls every listener registered at the time of the call with rec. Every
// listener is called even if an earlier one fails; the first error is returned.
func (ls *Listeners) Broadcast(rec QueryRecord) error {
	ls.mutex.Lock()
	listeners := ls.listeners
	ls.mutex.Unlock()

	var err error
	for _, l := range listeners {
		lerr := l.AddQuery(rec)
		if lerr != nil && err == nil {
			err = lerr
		}
	}
	return err
}
