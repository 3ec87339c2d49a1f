package ui

// Config contains TUI-specific configuration.
type Config struct {
	ShowAllFiles    bool
	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE"`
	EnableMouse     bool
	HomeDir         string `env:"HOME"`

	// Deck file or directory to present from.
	Path string

	// Autoplay the deck as soon as voices resolve.
	AutoPlay bool

	// Reload the deck when the file changes on disk.
	Watch bool

	// Voice and playback parameters.
	VoiceName string  `env:"DECKVOICE_VOICE"`
	Rate      float64 `env:"DECKVOICE_RATE"  envDefault:"1.0"`
	Pitch     float64 `env:"DECKVOICE_PITCH" envDefault:"1.0"`

	// Q&A interrupt flow. Empty AnswerURL disables it.
	QAEnabled bool
	AnswerURL string `env:"DECKVOICE_ANSWER_URL"`

	// Script regeneration service and its on-disk cache.
	ScriptURL string `env:"DECKVOICE_SCRIPT_URL"`
	CacheDir  string `env:"DECKVOICE_CACHE_DIR"`
}
