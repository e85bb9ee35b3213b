package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var recordFor time.Duration

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a note from the configured recognizer",
	Long: `Record starts a recognition session and prints the transcript as it
grows. Press Ctrl+C (or wait for --for) to stop; the transcript is then
saved as a note.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if recordFor > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, recordFor)
			defer cancel()
		}

		a, _, err := openApp(context.WithoutCancel(cmd.Context()))
		if err != nil {
			return err
		}
		defer a.Close()
		c := a.Controller

		changes, cancelChanges := c.SubscribeChanges()
		defer cancelChanges()

		if err := c.Start(ctx); err != nil {
			return err
		}
		fmt.Println("Recording... press Ctrl+C to stop.")

		last := ""
	loop:
		for {
			select {
			case <-ctx.Done():
				break loop
			case _, ok := <-changes:
				if !ok {
					break loop
				}
				snap := c.Snapshot()
				if snap.Transcript != last {
					last = snap.Transcript
					fmt.Println(last)
				}
				if !snap.Recording {
					break loop
				}
			}
		}

		note, saved, err := c.Stop(context.WithoutCancel(ctx))
		if err != nil {
			return err
		}
		if !saved {
			fmt.Println("Nothing was recognized; no note saved.")
			return nil
		}
		printNote(note)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().DurationVar(&recordFor, "for", 0, "Stop automatically after this long")
}
