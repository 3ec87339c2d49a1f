// Package main provides the entry point for the deckvoice CLI application.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/mitchellh/go-homedir"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/presentpro/deckvoice/engine"
	"github.com/presentpro/deckvoice/engine/piper"
	"github.com/presentpro/deckvoice/ui"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	style      string
	width      uint
	showAll    bool
	mouse      bool
	watch      bool
	autoplay   bool
	voiceName  string
	rate       float64
	pitch      float64
	modelDir   string
	answerURL  string
	scriptURL  string
	cacheDir   string
	qaEnabled  bool

	keyword = lipgloss.NewStyle().Foreground(lipgloss.Color("204")).Render

	rootCmd = &cobra.Command{
		Use:   "deckvoice [DECK|DIR]",
		Short: "Present slide decks with spoken narration",
		Long: fmt.Sprintf(
			"\nPresent a slide deck on the CLI, %s.",
			keyword("read aloud"),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		Args:             cobra.MaximumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return nil, cobra.ShellCompDirectiveDefault
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return validateOptions(cmd)
		},
		RunE: execute,
	}
)

// validateStyle checks if the style is a default style, if not, checks that
// the custom style exists.
func validateStyle(style string) error {
	if style != "auto" && styles.DefaultStyles[style] == nil {
		style = expandPath(style)
		if _, err := os.Stat(style); errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("specified style does not exist: %s", style)
		} else if err != nil {
			return fmt.Errorf("unable to stat file: %w", err)
		}
	}
	return nil
}

func validateOptions(cmd *cobra.Command) error {
	// grab config values from Viper
	width = viper.GetUint("width")
	mouse = viper.GetBool("mouse")
	showAll = viper.GetBool("all")
	watch = viper.GetBool("watch")
	autoplay = viper.GetBool("autoplay")
	voiceName = viper.GetString("voice")
	rate = viper.GetFloat64("rate")
	pitch = viper.GetFloat64("pitch")
	modelDir = viper.GetString("model_dir")
	answerURL = viper.GetString("answer_url")
	scriptURL = viper.GetString("script_url")
	cacheDir = viper.GetString("cache_dir")
	qaEnabled = viper.GetBool("qa")

	if rate < engine.ParamMin || rate > engine.ParamMax {
		return fmt.Errorf("rate must be between %v and %v, got %v", engine.ParamMin, engine.ParamMax, rate)
	}
	if pitch < engine.ParamMin || pitch > engine.ParamMax {
		return fmt.Errorf("pitch must be between %v and %v, got %v", engine.ParamMin, engine.ParamMax, pitch)
	}

	// validate the glamour style
	style = viper.GetString("style")
	if err := validateStyle(style); err != nil {
		return err
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return errors.New("deckvoice requires an interactive terminal")
	}

	// Detect terminal width
	if !cmd.Flags().Changed("width") {
		if width == 0 {
			w, _, err := term.GetSize(int(os.Stdout.Fd()))
			if err == nil {
				width = uint(w) //nolint:gosec
			}
			if width > 120 {
				width = 120
			}
		}
		if width == 0 {
			width = 80
		}
	}
	return nil
}

func execute(_ *cobra.Command, args []string) error {
	path := ""
	if len(args) > 0 {
		path = expandPath(args[0])
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("unable to open %s: %w", path, err)
		}
	}

	dev, err := piper.NewDevice(resolveModelDir())
	if err != nil {
		if errors.Is(err, piper.ErrBinaryNotFound) {
			return fmt.Errorf("%w (install piper or put it on your PATH)", err)
		}
		return fmt.Errorf("unable to open narration device: %w", err)
	}

	return runTUI(path, dev)
}

func runTUI(path string, dev engine.Device) error {
	cfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}

	// use style set in env, or auto if unset
	if err := validateStyle(cfg.GlamourStyle); err != nil {
		cfg.GlamourStyle = style
	}

	cfg.Path = path
	cfg.ShowAllFiles = showAll
	cfg.GlamourMaxWidth = width
	cfg.EnableMouse = mouse
	cfg.Watch = watch
	cfg.AutoPlay = autoplay
	cfg.QAEnabled = qaEnabled

	// Flags beat the environment when set.
	if voiceName != "" {
		cfg.VoiceName = voiceName
	}
	if rate != 0 {
		cfg.Rate = rate
	}
	if pitch != 0 {
		cfg.Pitch = pitch
	}
	if answerURL != "" {
		cfg.AnswerURL = answerURL
	}
	if scriptURL != "" {
		cfg.ScriptURL = scriptURL
	}
	if cacheDir != "" {
		cfg.CacheDir = expandPath(cacheDir)
	}
	if cfg.CacheDir == "" {
		scope := gap.NewScope(gap.User, "deckvoice")
		if dir, err := scope.CacheDir(); err == nil {
			cfg.CacheDir = filepath.Join(dir, "scripts")
		}
	}

	if _, err := ui.NewProgram(cfg, dev).Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}

// resolveModelDir picks the piper voice-model directory: the configured one,
// or the first conventional location that exists.
func resolveModelDir() string {
	if modelDir != "" {
		return expandPath(modelDir)
	}
	candidates := []string{
		expandPath("~/.local/share/piper/voices"),
		"/usr/share/piper/voices",
		"/usr/share/piper",
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c
		}
	}
	return candidates[0]
}

// expandPath expands a leading tilde. Bad input is returned unchanged.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return path
	}
	return expanded
}

func setupLog() (func() error, error) {
	log.SetOutput(io.Discard)
	if lf := os.Getenv("DECKVOICE_LOGFILE"); lf != "" {
		f, err := os.OpenFile(expandPath(lf), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("error setting up logging: %w", err)
		}
		log.SetOutput(f)
		log.SetLevel(log.DebugLevel)
		return f.Close, nil
	}
	return func() error { return nil }, nil
}

func main() {
	closer, err := setupLog()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	if err := rootCmd.Execute(); err != nil {
		_ = closer()
		os.Exit(1)
	}
	_ = closer()
}

func init() {
	tryLoadConfigFromDefaultPlaces()
	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.Flags().StringVarP(&style, "style", "s", styles.AutoStyle, "style name or JSON path")
	rootCmd.Flags().UintVarP(&width, "width", "w", 0, "word-wrap at width (set to 0 to disable)")
	rootCmd.Flags().BoolVarP(&showAll, "all", "a", false, "show system files and directories in the deck listing")
	rootCmd.Flags().BoolVarP(&mouse, "mouse", "m", false, "enable mouse wheel")
	_ = rootCmd.Flags().MarkHidden("mouse")
	rootCmd.Flags().BoolVar(&watch, "watch", false, "reload the deck when it changes on disk")
	rootCmd.Flags().BoolVarP(&autoplay, "play", "p", false, "start narrating as soon as voices load")
	rootCmd.Flags().StringVar(&voiceName, "voice", "", "preferred voice name (advisory)")
	rootCmd.Flags().Float64Var(&rate, "rate", 1.0, "speech rate (0.5-2.0)")
	rootCmd.Flags().Float64Var(&pitch, "pitch", 1.0, "speech pitch (0.5-2.0)")
	rootCmd.Flags().StringVar(&modelDir, "model-dir", "", "directory holding piper voice models")
	rootCmd.Flags().StringVar(&answerURL, "answer-url", "", "Q&A service base URL")
	rootCmd.Flags().StringVar(&scriptURL, "script-url", "", "script generation service base URL")
	rootCmd.Flags().StringVar(&cacheDir, "cache-dir", "", "script cache directory")
	rootCmd.Flags().BoolVar(&qaEnabled, "qa", true, "allow question interrupts during narration")

	// Config bindings
	_ = viper.BindPFlag("style", rootCmd.Flags().Lookup("style"))
	_ = viper.BindPFlag("width", rootCmd.Flags().Lookup("width"))
	_ = viper.BindPFlag("all", rootCmd.Flags().Lookup("all"))
	_ = viper.BindPFlag("mouse", rootCmd.Flags().Lookup("mouse"))
	_ = viper.BindPFlag("watch", rootCmd.Flags().Lookup("watch"))
	_ = viper.BindPFlag("autoplay", rootCmd.Flags().Lookup("play"))
	_ = viper.BindPFlag("voice", rootCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("rate", rootCmd.Flags().Lookup("rate"))
	_ = viper.BindPFlag("pitch", rootCmd.Flags().Lookup("pitch"))
	_ = viper.BindPFlag("model_dir", rootCmd.Flags().Lookup("model-dir"))
	_ = viper.BindPFlag("answer_url", rootCmd.Flags().Lookup("answer-url"))
	_ = viper.BindPFlag("script_url", rootCmd.Flags().Lookup("script-url"))
	_ = viper.BindPFlag("cache_dir", rootCmd.Flags().Lookup("cache-dir"))
	_ = viper.BindPFlag("qa", rootCmd.Flags().Lookup("qa"))

	viper.SetDefault("style", styles.AutoStyle)
	viper.SetDefault("width", 0)
	viper.SetDefault("all", false)
	viper.SetDefault("rate", 1.0)
	viper.SetDefault("pitch", 1.0)
	viper.SetDefault("qa", true)

	rootCmd.AddCommand(configCmd, manCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "deckvoice")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find the configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "deckvoice")}, dirs...)
	}

	if c := os.Getenv("DECKVOICE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("deckvoice")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("deckvoice")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", viper.ConfigFileUsed())
		return
	}

	if viper.ConfigFileUsed() == "" {
		configFile = filepath.Join(dirs[0], "deckvoice.yml")
	}
	if err := ensureConfigFile(); err != nil {
		log.Error("Could not create default configuration", "error", err)
	}
}
