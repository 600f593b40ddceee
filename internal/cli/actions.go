package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newToggleReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle-read <message-id>",
		Short: "Flip the read flag of a mail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, _, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			// The local flip sticks even when the remote call fails; the
			// error tells the user the remote side has not caught up yet.
			if err := ds.ToggleReadStatus(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("Read status toggled.")
			return nil
		},
	}
}

func newMarkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mark",
		Short: "Set the read flag of a mail",
	}

	mark := func(use string, isRead bool) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <message-id>",
			Short: "Mark a mail as " + use,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ds, _, cleanup, err := setup()
				if err != nil {
					return err
				}
				defer cleanup()

				if err := ds.UpdateReadStatus(cmd.Context(), args[0], isRead); err != nil {
					return err
				}
				fmt.Printf("Marked %s.\n", use)
				return nil
			},
		}
	}

	cmd.AddCommand(mark("read", true))
	cmd.AddCommand(mark("unread", false))
	return cmd
}

func newTrashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trash <message-id>",
		Short: "Delete a mail locally and move it to trash remotely",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, _, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := ds.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("Mail trashed.")
			return nil
		},
	}
}
