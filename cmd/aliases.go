package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var aliasesCmd = &cobra.Command{
	Use:   "aliases",
	Short: "Manage saved roster-label aliases",
}

var aliasesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved aliases",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		aliases, err := env.store.ListAliases(ctx, env.userID)
		if err != nil {
			return err
		}
		if len(aliases) == 0 {
			fmt.Println("no aliases saved")
			return nil
		}
		for _, a := range aliases {
			name := a.JobConfigID
			if j, ok := env.registry.Get(a.JobConfigID); ok {
				name = j.Name
			}
			fmt.Printf("%-30s -> %s\n", a.Alias, name)
		}
		return nil
	},
}

var aliasesDeleteCmd = &cobra.Command{
	Use:   "delete <alias>",
	Short: "Delete a saved alias",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.store.DeleteAlias(ctx, env.userID, args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted alias %q\n", args[0])
		return nil
	},
}

func init() {
	aliasesCmd.AddCommand(aliasesListCmd)
	aliasesCmd.AddCommand(aliasesDeleteCmd)
	rootCmd.AddCommand(aliasesCmd)
}
