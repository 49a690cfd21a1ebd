package commands

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List enrolled users",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, flags, func(a *app) error {
				users, err := a.engine.Users(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(users) == 0 {
					fmt.Fprintln(out, KeyStyle.Render("No enrolled users."))
					return nil
				}
				for _, u := range users {
					fmt.Fprintln(out, u)
				}
				return nil
			})
		},
	}
}

func newDeleteCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <user>",
		Aliases: []string{"rm"},
		Short:   "Remove a user's enrollment",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(a *app) error {
				if err := a.engine.Delete(cmd.Context(), args[0]); err != nil {
					return errors.Wrapf(err, "delete %q", args[0])
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted '%s'.\n", args[0])
				return nil
			})
		},
	}
}
