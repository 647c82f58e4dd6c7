package ratelimit

// Peek returns a copy of identity's current record.
func (rl *RateLimiter) Peek(identity string) (Window, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	w, ok := rl.windows[identity]
	if !ok {
		return Window{}, false
	}
	return *w, true
}
