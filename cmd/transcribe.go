package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rtzll/utube/internal"
)

// transcribeCmd represents the transcribe command
var transcribeCmd = &cobra.Command{
	Use:   "transcribe [YouTube URL or ID]",
	Short: "Get transcript from YouTube (cached or downloaded)",
	Example: `  # Get transcript from YouTube captions
  utube transcribe "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  utube transcribe tAP1eZYEuKA

  # Save transcript to file
  utube transcribe tAP1eZYEuKA -o transcript.txt

  # Use Whisper if no captions available (costs money)
  utube transcribe tAP1eZYEuKA --fallback-whisper`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		transcript, err := fetchTranscript(cmd, app, args[0])
		if err != nil {
			return err
		}

		outputFile, _ := cmd.Flags().GetString("output")
		if outputFile != "" {
			if err := os.WriteFile(outputFile, []byte(transcript.Text+"\n"), 0644); err != nil {
				return fmt.Errorf("writing transcript: %w", err)
			}
			return nil
		}

		fmt.Println(transcript.Text)
		return nil
	},
}

func init() {
	internal.AddTranscriptionFlags(transcribeCmd)
	transcribeCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	rootCmd.AddCommand(transcribeCmd)
}
