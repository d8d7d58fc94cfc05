package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func NewDeleteUserCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete-user <id>",
		Short: "Delete a user and everything they own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to delete without --yes")
			}
			svc, closeDB, err := openService()
			if err != nil {
				return err
			}
			defer closeDB()

			if err := svc.DeleteUser(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted user %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")

	return cmd
}
