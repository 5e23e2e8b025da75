package pacer

// TokenDispenser bounds concurrency: callers Get a token before
// starting work and Put it back when done, so at most n pieces of work
// run at once.
type TokenDispenser struct {
	tokens chan struct{}
}

// NewTokenDispenser makes a pool of n tokens.
func NewTokenDispenser(n int) *TokenDispenser {
	td := &TokenDispenser{
		tokens: make(chan struct{}, n),
	}
	for i := 0; i < n; i++ {
		td.tokens <- struct{}{}
	}
	return td
}

// Get takes a token from the pool, blocking until one is free.  Return
// it with Put.
func (td *TokenDispenser) Get() {
	<-td.tokens
}

// Put returns a token to the pool.
func (td *TokenDispenser) Put() {
	td.tokens <- struct{}{}
}
