package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:   "add [text...]",
	Short: "Save typed text as a note",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		note, created, err := a.Controller.Add(cmd.Context(), strings.Join(args, " "))
		if err != nil {
			return err
		}
		if !created {
			fmt.Println("Nothing to save.")
			return nil
		}
		printNote(note)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}
