package engine

import "time"

// Hooks for the external engine tests, which drive the engine through a fake
// device and need deterministic timers and explicit event generations.

// SetAfterHooks replaces every timer hook on the engine, its speaker and its
// voice catalog.
func SetAfterHooks(e *Engine, f func(time.Duration, func())) {
	e.after = f
	e.speaker.after = f
	e.catalog.after = f
}

// SetSettleHook replaces only the navigation settle timer hook.
func SetSettleHook(e *Engine, f func(time.Duration, func())) {
	e.after = f
}

// InjectAnswer feeds an answer-service result carrying an explicit
// generation, simulating a lookup that returns after the session moved on.
func InjectAnswer(e *Engine, gen uint64, answer string) {
	e.dispatch(evAnswer{gen: gen, answer: answer})
}
