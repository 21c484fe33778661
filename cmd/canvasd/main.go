// Command canvasd is the canvasrt engine runtime's CLI entry point,
// generalizing the teacher's stdlib-flag cmd/caire into a cobra+viper
// command (SPEC_FULL.md DOMAIN STACK) that spawns the engine process,
// opens the event log, and runs the cooperative message loop until
// interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/brood-studio/canvasrt/internal/config"
	"github.com/brood-studio/canvasrt/internal/logx"
	"github.com/brood-studio/canvasrt/internal/runtime"
	"github.com/brood-studio/canvasrt/utils"
)

const helpBanner = `
┌─┐┌─┐┌┐┌┐ ┌─┐┌─┐┬─┐┌┬┐
│  ├─┤│││└┐├┤ │ │├┬┘ │
└─┘┴ ┴┘└┘ └└─┘└─┘┴└──┴

Engine-backed creative canvas runtime.
    Version: %s

`

// Version indicates the current build version, overridable via -ldflags.
var Version = "dev"

var cfgFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, utils.DecorateText(err.Error(), utils.ErrorMessage))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "canvasd",
		Short:   "Run the canvasrt engine runtime",
		Version: Version,
		RunE:    runCanvasd,
	}
	cmd.SetVersionTemplate(fmt.Sprintf(helpBanner, Version))

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "Path to a config file (yaml/json/toml)")
	flags.Bool("memory", false, "Enable the engine's persistent memory")
	flags.Bool("always-on-vision", false, "Enable ambient vision (debounced, throttled canvas-context passes)")
	flags.Bool("auto-accept-ability", false, "Store the auto-accept setting; suggested abilities are logged, not invoked")
	flags.String("text-model", "gpt-4o", "Text model identifier passed to the engine")
	flags.String("image-model", "gpt-image-1", "Image model identifier passed to the engine")
	flags.String("portraits-dir", "", "Directory the engine reads portrait references from")
	flags.String("run-dir", "./run", "Directory for run-scoped state (intent trace, ambient snapshot, locks)")
	flags.String("event-log", "", "Path to the engine's event log (jsonl, tailed via fsnotify)")
	flags.String("engine-command", "", "Path to the engine executable spawned under a pty")
	flags.String("cascade-path", "", "Path to the pigo face-detection cascade file")
	flags.Bool("key-openai", false, "OpenAI API key is configured")
	flags.Bool("key-gemini", false, "Gemini API key is configured")
	flags.Bool("key-imagen", false, "Imagen API key is configured")
	flags.Bool("key-flux", false, "Flux API key is configured")
	flags.Bool("key-anthropic", false, "Anthropic API key is configured")
	flags.Bool("no-intent-timer", false, "Clear the IntentTimerEnabled feature flag (no runtime code reads it)")
	flags.Bool("no-intent-rounds", false, "Disable intent inference rounds entirely")
	flags.Bool("no-drag-drop-import", false, "Clear the EnableDragDropImport feature flag (no runtime code reads it)")

	_ = viper.BindPFlags(flags)
	return cmd
}

func runCanvasd(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return fmt.Errorf("canvasd: load config: %w", err)
	}

	settings := settingsFromViper()
	flags := featureFlagsFromViper()
	keys := keyStatusFromViper()

	log := logx.New(os.Stderr)
	logx.Status(log, "canvasd", fmt.Sprintf("text=%s image=%s run_dir=%s", settings.TextModel, settings.ImageModel, settings.RunDir))

	if err := os.MkdirAll(settings.RunDir, 0o755); err != nil {
		return fmt.Errorf("canvasd: prepare run dir: %w", err)
	}

	rt := runtime.New(settings, flags, keys, &log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spinner := utils.NewSpinner(
		fmt.Sprintf("%s %s",
			utils.DecorateText("⚡ CANVASD", utils.StatusMessage),
			utils.DecorateText("⇢ spawning engine session...", utils.DefaultMessage),
		),
		80*time.Millisecond, termSupportsCursorHiding(),
	)
	spinner.Start()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- rt.Run(ctx) }()

	select {
	case <-waitUntilEngineSettled(ctx, rt):
		spinner.StopMsg = fmt.Sprintf("%s\n", utils.DecorateText("engine ready", utils.SuccessMessage))
		spinner.Stop()
	case <-ctx.Done():
		spinner.Stop()
	}

	err := <-runErrCh
	if err != nil && err != context.Canceled {
		logx.Failure(log, "canvasd", err)
		return err
	}
	logx.Success(log, "canvasd", "shut down cleanly")
	return nil
}

// waitUntilEngineSettled returns a channel closed as soon as the engine
// process has either started running or given up, so the spawn spinner
// doesn't spin forever on a process that exits immediately.
func waitUntilEngineSettled(ctx context.Context, rt *runtime.Runtime) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if rt.Engine.IsRunning() || !rt.Engine.IsSpawning() {
					return
				}
			}
		}
	}()
	return done
}

func termSupportsCursorHiding() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

func loadConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		return viper.ReadInConfig()
	}
	viper.SetConfigName("canvasd")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.config/canvasd")
	viper.SetEnvPrefix("canvasd")
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return err
	}
	return nil
}

func settingsFromViper() config.Settings {
	return config.Settings{
		Memory:                     viper.GetBool("memory"),
		AlwaysOnVision:             viper.GetBool("always-on-vision"),
		AutoAcceptSuggestedAbility: viper.GetBool("auto-accept-ability"),
		TextModel:                  viper.GetString("text-model"),
		ImageModel:                 viper.GetString("image-model"),
		PortraitsDir:               viper.GetString("portraits-dir"),
		RunDir:                     viper.GetString("run-dir"),
		EventLogPath:               viper.GetString("event-log"),
		EngineCommand:              viper.GetString("engine-command"),
		CascadePath:                viper.GetString("cascade-path"),
	}
}

func featureFlagsFromViper() config.FeatureFlags {
	return config.FeatureFlags{
		IntentTimerEnabled:   !viper.GetBool("no-intent-timer"),
		IntentRoundsEnabled:  !viper.GetBool("no-intent-rounds"),
		EnableDragDropImport: !viper.GetBool("no-drag-drop-import"),
	}
}

func keyStatusFromViper() config.KeyStatus {
	return config.KeyStatus{
		OpenAI:    viper.GetBool("key-openai"),
		Gemini:    viper.GetBool("key-gemini"),
		Imagen:    viper.GetBool("key-imagen"),
		Flux:      viper.GetBool("key-flux"),
		Anthropic: viper.GetBool("key-anthropic"),
	}
}
