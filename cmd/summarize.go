package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rtzll/utube/internal"
)

// summarizeCmd represents the summarize command
var summarizeCmd = &cobra.Command{
	Use:   "summarize [YouTube URL or ID] [--fallback-whisper]",
	Short: "Generate summary from YouTube video",
	Example: `  # Generate summary from YouTube video
  utube summarize "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  utube summarize tAP1eZYEuKA

  # Summarize with a local Ollama model
  utube summarize tAP1eZYEuKA -P ollama -m llama3.2

  # Use custom prompt
  utube summarize tAP1eZYEuKA --prompt "tldr: {{.Transcript}}"

  # Fallback to Whisper if no captions (costs money)
  utube summarize tAP1eZYEuKA --fallback-whisper`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSummarize(cmd, args[0])
	},
}

func init() {
	internal.AddTranscriptionFlags(summarizeCmd)
	internal.AddSummaryFlags(summarizeCmd)
	rootCmd.AddCommand(summarizeCmd)
}
