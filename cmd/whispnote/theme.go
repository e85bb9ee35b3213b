package main

import (
	"fmt"

	"github.com/loqalabs/whispnote/internal/prefs"
	"github.com/spf13/cobra"
)

var themeCmd = &cobra.Command{
	Use:       "theme [light|dark|toggle]",
	Short:     "Show or change the UI theme",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"light", "dark", "toggle"},
	RunE: func(cmd *cobra.Command, args []string) error {
		a, _, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		c := a.Controller
		if len(args) == 1 {
			switch args[0] {
			case "toggle":
				if _, err := c.ToggleTheme(ctx); err != nil {
					return err
				}
			case string(prefs.ThemeLight), string(prefs.ThemeDark):
				if err := c.SetTheme(ctx, prefs.Theme(args[0])); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown theme %q", args[0])
			}
		}
		fmt.Println(c.Theme())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(themeCmd)
}
