package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/rtzll/utube/internal"
)

// buildApp opens the configured cache and applies the --prompt flag
func buildApp(cmd *cobra.Command, options ...internal.AppOption) (*internal.App, error) {
	store, err := internal.OpenStore(cmd.Context(), config)
	if err != nil {
		return nil, err
	}

	app := internal.NewApp(config, append([]internal.AppOption{internal.WithStore(store)}, options...)...)
	if err := internal.HandlePromptFlag(cmd, app); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// transcriptOptions reads --fallback-whisper; without it the user is asked on a terminal
func transcriptOptions(cmd *cobra.Command) internal.TranscriptOptions {
	fallback, _ := cmd.Flags().GetBool("fallback-whisper")
	opts := internal.TranscriptOptions{FallbackWhisper: fallback || config.FallbackWhisper}
	if !config.Quiet && isatty.IsTerminal(os.Stdin.Fd()) {
		opts.Confirm = internal.AskUser
	}
	return opts
}

// fetchTranscript retrieves a transcript for the given argument and optionally falls back to Whisper.
func fetchTranscript(cmd *cobra.Command, app *internal.App, arg string) (*internal.Transcript, error) {
	ref, err := app.Resolve(arg)
	if err != nil {
		return nil, err
	}
	return app.TranscriptWithFallback(cmd.Context(), ref, transcriptOptions(cmd))
}

func runSummarize(cmd *cobra.Command, arg string) error {
	if err := internal.ValidateSummaryRequirements(cmd, config); err != nil {
		return err
	}

	app, err := buildApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	result, err := app.Summarize(cmd.Context(), arg, transcriptOptions(cmd))
	if err != nil {
		return err
	}

	rendered, err := internal.RenderMarkdown(result.Summary)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		fmt.Println(result.Summary)
		return nil
	}
	fmt.Print(rendered)
	return nil
}
