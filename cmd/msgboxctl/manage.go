package main

import (
	"fmt"

	"github.com/rbaliyan/msgbox"
	"github.com/rbaliyan/msgbox/internal/app"
	"github.com/spf13/cobra"
)

// statusCmd builds archive, trash and restore.
func statusCmd(use, short string) *cobra.Command {
	var user int64
	cmd := &cobra.Command{
		Use:   use + " MESSAGE_ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				mb := a.Service.Client(msgbox.UserID(user))
				switch use {
				case "archive":
					return mb.Archive(cmd.Context(), args[0])
				case "trash":
					return mb.Trash(cmd.Context(), args[0])
				case "restore":
					return mb.Restore(cmd.Context(), args[0])
				}
				return fmt.Errorf("unknown status command %q", use)
			})
		},
	}
	cmd.Flags().Int64VarP(&user, "user", "u", 0, "mailbox owner")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func readCmd() *cobra.Command {
	var (
		user   int64
		unread bool
	)
	cmd := &cobra.Command{
		Use:   "read MESSAGE_ID",
		Short: "Mark a message as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				return a.Service.Client(msgbox.UserID(user)).MarkRead(cmd.Context(), args[0], !unread)
			})
		},
	}
	cmd.Flags().Int64VarP(&user, "user", "u", 0, "mailbox owner")
	cmd.Flags().BoolVar(&unread, "unread", false, "mark as unread instead")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
