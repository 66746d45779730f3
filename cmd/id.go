package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtzll/utube/internal"
)

// idCmd prints the video ID found in a URL
var idCmd = &cobra.Command{
	Use:   "id [URL]",
	Short: "Print the video ID of a YouTube URL",
	Example: `  utube id "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  utube id "https://youtu.be/tAP1eZYEuKA?t=42"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, ok := internal.ExtractVideoID(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", internal.ErrInvalidURL, args[0])
		}
		fmt.Println(ref.ID)
		if config.Verbose {
			fmt.Println(ref.URL)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(idCmd)
}
