package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rtzll/utube/internal"
)

var (
	config     *internal.Config
	configFile string

	// draining is set by long running commands that shut down on context cancel
	draining atomic.Bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "utube [YouTube URL or ID]",
	Short: "YouTube video summarizer",
	Long: `utube summarizes YouTube videos with a language model.

It extracts the video ID from the URL, fetches the captions (or transcribes
the audio with Whisper when there are none) and sends the transcript to the
configured provider: Gemini by default, or OpenAI, Anthropic or Ollama.

Run "utube serve" for the web form.`,
	Example: `  # Summarize a YouTube video (default behavior)
  utube "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  utube tAP1eZYEuKA

  # Use another provider and model
  utube "https://youtu.be/tAP1eZYEuKA" --provider openai --model gpt-4o

  # Use custom prompt for summary
  utube tAP1eZYEuKA --prompt "tldr: {{.Transcript}}"

  # Fallback to Whisper if no captions available (costs money)
  utube "https://youtu.be/tAP1eZYEuKA" --fallback-whisper`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := rejectCommandLike(cmd, args[0]); err != nil {
			return err
		}
		return runSummarize(cmd, args[0])
	},
}

// setup loads configuration once flags are parsed
func setup(cmd *cobra.Command) error {
	var err error
	config, err = internal.InitConfig(configFile)
	if err != nil {
		return err
	}

	if err := internal.HandleVerboseFlag(cmd, config); err != nil {
		return err
	}

	if err := internal.EnsureDirs(config.ConfigDir, config.DataDir, config.CacheDir, config.TranscriptsDir); err != nil {
		return fmt.Errorf("creating XDG directories: %w", err)
	}

	if err := internal.EnsureDefaultConfig(config.ConfigDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to ensure default config: %v\n", err)
	}
	if err := internal.EnsureDefaultPrompt(config.ConfigDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to ensure default prompt: %v\n", err)
	}

	return nil
}

// rejectCommandLike catches mistyped subcommands before they are treated as video IDs
func rejectCommandLike(cmd *cobra.Command, arg string) error {
	parsed := internal.ParseArg(arg)
	if parsed.ContentType != internal.ContentTypeCommand {
		return nil
	}

	var names []string
	for _, c := range cmd.Root().Commands() {
		names = append(names, c.Name())
	}
	return fmt.Errorf("%w; %s", parsed.Error, parsed.SuggestCorrection(names))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nReceived interrupt signal. Cleaning up and shutting down...")
		cancel()

		// servers drain in-flight requests and return on their own
		if draining.Load() {
			return
		}

		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cleanupCancel()

		cleanupDone := make(chan struct{})
		go func() {
			if config != nil {
				if err := internal.CleanupTempDir(config.TempDir); err != nil {
					fmt.Fprintf(os.Stderr, "Error cleaning up temporary files: %v\n", err)
				}
			}
			close(cleanupDone)
		}()

		select {
		case <-cleanupDone:
		case <-cleanupCtx.Done():
			fmt.Fprintln(os.Stderr, "Warning: Cleanup timed out, forcing exit")
		}

		os.Exit(130)
	}()

	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, internal.UserMessage(err))
		return err
	}
	return nil
}

func init() {
	internal.AddTranscriptionFlags(rootCmd)
	internal.AddSummaryFlags(rootCmd)
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for debugging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress progress and status output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default is $XDG_CONFIG_HOME/utube/config.toml)")
}
