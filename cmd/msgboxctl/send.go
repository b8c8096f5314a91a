package main

import (
	"fmt"

	"github.com/rbaliyan/msgbox"
	"github.com/rbaliyan/msgbox/internal/app"
	"github.com/spf13/cobra"
)

func sendCmd() *cobra.Command {
	var (
		from int64
		to   int64
		body string
	)

	cmd := &cobra.Command{
		Use:       "send {inbox|invitation|alert}",
		Short:     "Create a message",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"inbox", "invitation", "alert"},
		RunE: func(cmd *cobra.Command, args []string) error {
			req := msgbox.CreateRequest{
				SenderID:    msgbox.UserID(from),
				RecipientID: msgbox.UserID(to),
				Body:        body,
			}
			return withApp(cmd, func(a *app.App) error {
				var (
					msg *msgbox.Message
					err error
				)
				switch args[0] {
				case "inbox":
					msg, err = a.Service.CreateInbox(cmd.Context(), req)
				case "invitation":
					msg, err = a.Service.CreateInvitation(cmd.Context(), req)
				case "alert":
					msg, err = a.Service.CreateAlert(cmd.Context(), req)
				default:
					return fmt.Errorf("unknown message type %q", args[0])
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), msg.ID)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&from, "from", 0, "sender user id (0 for none)")
	cmd.Flags().Int64Var(&to, "to", 0, "recipient user id")
	cmd.Flags().StringVar(&body, "body", "", "message body")
	_ = cmd.MarkFlagRequired("to")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}
