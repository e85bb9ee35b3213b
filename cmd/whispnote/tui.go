package main

import (
	"time"

	"github.com/loqalabs/whispnote/internal/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open the terminal UI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, cfg, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		first, err := a.Controller.FirstVisit(ctx)
		if err != nil {
			return err
		}
		return tui.Run(ctx, a.Controller, tui.Options{
			Shortcut:            cfg.UI.Shortcut,
			NotificationTimeout: time.Duration(cfg.UI.NotificationTimeoutMS) * time.Millisecond,
			FirstVisit:          first,
		})
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
