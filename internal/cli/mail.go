package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authenticate with Gmail",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := resolveGmailCredentials(cfg); err != nil {
				return err
			}

			// setup is not used here: auth must work before a database or
			// data source exists.
			if err := newGmailClient().Authenticate(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("Authenticated. Token saved to the OS keyring.")
			return nil
		},
	}
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Synchronize the mailbox with Gmail",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, _, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			if err := ds.RefreshMails(cmd.Context()); err != nil {
				return fmt.Errorf("failed to refresh mailbox: %w", err)
			}
			fmt.Println("Mailbox synchronized.")
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var refreshFlag, watchFlag bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached mails",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, _, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			ch, cancel := ds.GetEmails(cmd.Context(), refreshFlag)
			defer cancel()

			for r := range ch {
				if r.Err != nil {
					if !watchFlag {
						return r.Err
					}
					fmt.Fprintf(os.Stderr, "error: %v\n", r.Err)
					continue
				}
				printSummaries(os.Stdout, r.Value)
				if !watchFlag {
					return nil
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refreshFlag, "refresh", false, "synchronize before listing")
	cmd.Flags().BoolVar(&watchFlag, "watch", false, "keep printing the listing as it changes")
	return cmd
}

func newUnreadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unread",
		Short: "Show all unread mails with their bodies",
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, _, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			ch, cancel := ds.GetFullUnreadMails(cmd.Context())
			defer cancel()

			r, ok := <-ch
			if !ok {
				return fmt.Errorf("unread stream closed before emitting")
			}
			if r.Err != nil {
				return r.Err
			}
			if len(r.Value) == 0 {
				fmt.Println("No unread mail.")
				return nil
			}
			for i := range r.Value {
				if i > 0 {
					fmt.Println()
				}
				printMail(os.Stdout, &r.Value[i])
			}
			return nil
		},
	}
}

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <message-id>",
		Short: "Show a single mail, fetching it if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ds, _, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()

			ch, cancel := ds.GetMail(cmd.Context(), args[0])
			defer cancel()

			r, ok := <-ch
			if !ok {
				return fmt.Errorf("mail stream closed before emitting")
			}
			if r.Err != nil {
				return r.Err
			}
			printMail(os.Stdout, &r.Value)
			return nil
		},
	}
}
