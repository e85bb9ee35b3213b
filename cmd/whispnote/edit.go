package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var editText string

var editCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Replace a note's text",
	Long: `Edit removes the note and saves the new text as a fresh note, so the
id and timestamp change. Without --text the note is saved again unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid note id %q", args[0])
		}
		a, _, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		found, err := a.Controller.Edit(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("no note with id %d", id)
		}
		if cmd.Flags().Changed("text") {
			a.Controller.SetTranscript(editText)
		}
		note, saved, err := a.Controller.Save(ctx)
		if err != nil {
			return err
		}
		if !saved {
			fmt.Printf("Note %d removed; the new text was empty.\n", id)
			return nil
		}
		printNote(note)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(editCmd)
	editCmd.Flags().StringVar(&editText, "text", "", "New note text")
}
