package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show this month's scan quota",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		u := env.quotaGate(ctx).Usage()
		fmt.Printf("scans used: %d / %d (%d remaining)\n", u.Used, u.Limit, u.Remaining())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
}
