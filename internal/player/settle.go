package player

import "sync"

// result is a one-shot error cell. The first settle wins.
type result struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newResult() *result {
	return &result{done: make(chan struct{})}
}

// settle stores err if the cell is still open and reports whether it did.
func (r *result) settle(err error) bool {
	won := false
	r.once.Do(func() {
		r.err = err
		won = true
		close(r.done)
	})
	return won
}

// Done is closed once the cell settles.
func (r *result) Done() <-chan struct{} { return r.done }

// Err returns the settled value. Only valid after Done is closed.
func (r *result) Err() error { return r.err }
