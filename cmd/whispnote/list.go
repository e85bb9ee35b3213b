package main

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/loqalabs/whispnote/internal/notes"
	"github.com/spf13/cobra"
)

var (
	listJSON  bool
	filterTag string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved notes, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var filtered []notes.Note
		for _, note := range a.Controller.Notes() {
			if filterTag != "" && !slices.Contains(note.Tags, strings.TrimPrefix(filterTag, "#")) {
				continue
			}
			filtered = append(filtered, note)
		}

		if listJSON {
			if filtered == nil {
				filtered = []notes.Note{}
			}
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(filtered)
		}

		if len(filtered) == 0 {
			fmt.Println("No saved notes yet.")
			return nil
		}
		for _, note := range filtered {
			printNote(note)
		}
		return nil
	},
}

func printNote(note notes.Note) {
	fmt.Printf("%d  %s  %s\n", note.ID, note.Timestamp.Local().Format("2006-01-02 15:04"), note.Text)
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	listCmd.Flags().StringVar(&filterTag, "tag", "", "Only show notes with this tag")
}
