package engine

// FullscreenHost abstracts the surface that owns fullscreen state. The host
// is authoritative: it can leave fullscreen on its own (a system key, a
// window manager), so the engine reconciles its bit from change
// notifications instead of assuming its last request took effect.
type FullscreenHost interface {
	// Enter requests fullscreen presentation.
	Enter() error

	// Exit requests leaving fullscreen.
	Exit() error

	// OnChange registers a callback for host-level fullscreen changes,
	// including ones the engine did not request.
	OnChange(fn func(active bool))
}

// nopHost is used when no host is wired; fullscreen tracking degrades to
// mirroring the engine's own requests.
type nopHost struct{ fn func(bool) }

func (h *nopHost) Enter() error {
	if h.fn != nil {
		h.fn(true)
	}
	return nil
}

func (h *nopHost) Exit() error {
	if h.fn != nil {
		h.fn(false)
	}
	return nil
}

func (h *nopHost) OnChange(fn func(active bool)) { h.fn = fn }
