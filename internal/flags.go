package internal

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// AddTranscriptionFlags adds flags related to transcription functionality
func AddTranscriptionFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("fallback-whisper", false, "Fallback to Whisper if no captions available (costs money)")
}

// AddSummaryFlags adds flags selecting the summarization provider and prompt
func AddSummaryFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("provider", "P", "", fmt.Sprintf("Summarization provider (%s)", strings.Join(Providers, ", ")))
	cmd.Flags().StringP("model", "m", "", "Model to use for summaries")
	cmd.Flags().StringP("prompt", "p", "", "Custom prompt (string or file path)")
}

// HandlePromptFlag processes the --prompt flag to set custom prompt
func HandlePromptFlag(cmd *cobra.Command, app *App) error {
	promptFlag := cmd.Flags().Lookup("prompt")
	if promptFlag == nil || !promptFlag.Changed {
		return nil
	}

	prompt, err := cmd.Flags().GetString("prompt")
	if err != nil {
		return fmt.Errorf("failed to get prompt flag: %w", err)
	}
	if prompt == "" {
		return nil
	}

	app.SetPromptManager(NewPromptManager(app.config.ConfigDir, prompt, app.config.SystemPrompt))

	if IsLikelyFilePath(prompt) && FileExists(prompt) {
		app.ui.Verbose("Using custom prompt file: %s\n", prompt)
	} else {
		app.ui.Verbose("Using custom prompt string\n")
	}

	return nil
}

// HandleVerboseFlag processes the --verbose and --quiet flags to update config
func HandleVerboseFlag(cmd *cobra.Command, config *Config) error {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return fmt.Errorf("failed to get verbose flag: %w", err)
	}
	if cmd.Flags().Changed("verbose") || verbose {
		config.Verbose = verbose
	}

	if quiet, err := cmd.Flags().GetBool("quiet"); err == nil && quiet {
		config.Quiet = true
		config.Verbose = false
	}
	return nil
}

// ApplySummaryFlags copies --provider and --model into config
func ApplySummaryFlags(cmd *cobra.Command, config *Config) error {
	if provider, _ := cmd.Flags().GetString("provider"); provider != "" {
		provider = strings.ToLower(provider)
		if err := ValidateProvider(provider); err != nil {
			return err
		}
		if provider != config.Provider {
			config.Provider = provider
			config.Model = DefaultModel(provider)
		}
	}

	if model, _ := cmd.Flags().GetString("model"); model != "" {
		config.Model = model
	}
	return nil
}

// ValidateSummaryRequirements checks the provider and its credentials before any work is done
func ValidateSummaryRequirements(cmd *cobra.Command, config *Config) error {
	if err := ApplySummaryFlags(cmd, config); err != nil {
		return err
	}
	if err := ValidateProvider(config.Provider); err != nil {
		return err
	}
	if config.Model == "" {
		return fmt.Errorf("no model configured for provider %s", config.Provider)
	}
	if APIKeyEnv(config.Provider) != "" && config.APIKey(config.Provider) == "" {
		return missingKey(config.Provider)
	}
	return nil
}

// ValidateWhisperRequirements checks that Whisper can be called
func ValidateWhisperRequirements(config *Config) error {
	if config.OpenAIAPIKey == "" {
		return missingKey("openai")
	}
	return nil
}
