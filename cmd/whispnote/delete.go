package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
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

		deleted, err := a.Controller.Delete(cmd.Context(), id)
		if err != nil {
			return err
		}
		if !deleted {
			fmt.Printf("No note with id %d.\n", id)
			return nil
		}
		fmt.Printf("Note deleted: %d\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
