package playback

// Future is the result of an asynchronous clock operation (source load,
// play start). It is resolved exactly once and runs its continuations on the
// goroutine that resolves it, which is always the engine goroutine.
//
// Futures are not safe for concurrent use.
type Future struct {
	done bool
	err  error
	then []func(error)
}

func newFuture() *Future {
	return &Future{}
}

func resolvedFuture(err error) *Future {
	return &Future{done: true, err: err}
}

// Then registers fn to run once the future resolves. If it already has, fn
// runs immediately.
func (f *Future) Then(fn func(error)) {
	if f.done {
		fn(f.err)
		return
	}
	f.then = append(f.then, fn)
}

// Done reports whether the future has resolved.
func (f *Future) Done() bool { return f.done }

// Err returns the resolution error; nil while pending or on success.
func (f *Future) Err() error { return f.err }

func (f *Future) resolve(err error) {
	if f.done {
		return
	}
	f.done = true
	f.err = err
	callbacks := f.then
	f.then = nil
	for _, fn := range callbacks {
		fn(err)
	}
}
