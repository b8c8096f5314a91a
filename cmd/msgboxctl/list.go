package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rbaliyan/msgbox"
	"github.com/rbaliyan/msgbox/internal/app"
	"github.com/spf13/cobra"
)

type listFlags struct {
	user   int64
	limit  int
	offset int
}

func (f *listFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64VarP(&f.user, "user", "u", 0, "mailbox owner")
	cmd.Flags().IntVar(&f.limit, "limit", 20, "maximum rows to print")
	cmd.Flags().IntVar(&f.offset, "offset", 0, "rows to skip")
	_ = cmd.MarkFlagRequired("user")
}

func (f *listFlags) options() msgbox.ListOptions {
	return msgbox.ListOptions{Limit: f.limit, Offset: f.offset}
}

// listCmd builds a command that prints the messages returned by list.
func listCmd(use, short string, list func(ctx context.Context, mb msgbox.Mailbox, opts msgbox.ListOptions) ([]*msgbox.Message, error)) *cobra.Command {
	f := &listFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				msgs, err := list(cmd.Context(), a.Service.Client(msgbox.UserID(f.user)), f.options())
				if err != nil {
					return err
				}
				return printMessages(cmd.OutOrStdout(), msgbox.UserID(f.user), msgs)
			})
		},
	}
	f.register(cmd)
	return cmd
}

func conversationsCmd() *cobra.Command {
	cmd := listCmd("conversations", "List the latest message of each conversation",
		func(ctx context.Context, mb msgbox.Mailbox, opts msgbox.ListOptions) ([]*msgbox.Message, error) {
			return mb.Conversations(ctx, opts)
		})
	return cmd
}

func conversationCmd() *cobra.Command {
	var with int64
	cmd := listCmd("conversation", "List messages exchanged with another user",
		func(ctx context.Context, mb msgbox.Mailbox, opts msgbox.ListOptions) ([]*msgbox.Message, error) {
			return mb.Conversation(ctx, msgbox.UserID(with), opts)
		})
	cmd.Flags().Int64Var(&with, "with", 0, "the other participant")
	_ = cmd.MarkFlagRequired("with")
	return cmd
}

func invitationsCmd() *cobra.Command {
	cmd := listCmd("invitations", "List active invitations",
		func(ctx context.Context, mb msgbox.Mailbox, opts msgbox.ListOptions) ([]*msgbox.Message, error) {
			return mb.Invitations(ctx, opts)
		})
	return cmd
}

func alertsCmd() *cobra.Command {
	cmd := listCmd("alerts", "List active alerts",
		func(ctx context.Context, mb msgbox.Mailbox, opts msgbox.ListOptions) ([]*msgbox.Message, error) {
			return mb.Alerts(ctx, opts)
		})
	return cmd
}

func countsCmd() *cobra.Command {
	var user int64
	cmd := &cobra.Command{
		Use:   "counts",
		Short: "Print mailbox counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				c, err := a.Service.Client(msgbox.UserID(user)).Counts(cmd.Context())
				if err != nil {
					return err
				}
				return printCounts(cmd.OutOrStdout(), c)
			})
		},
	}
	cmd.Flags().Int64VarP(&user, "user", "u", 0, "mailbox owner")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func printMessages(w io.Writer, viewer msgbox.UserID, msgs []*msgbox.Message) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tWITH\tREAD\tWROTE\tBODY")
	for _, m := range msgs {
		with := "-"
		if other, ok := msgbox.Opponent(m, viewer); ok {
			with = fmt.Sprint(other)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\t%s\t%s\n",
			m.ID, m.Type, with, msgbox.IsRead(m), msgbox.WroteAtFormatted(m), preview(m.Body))
	}
	return tw.Flush()
}

func printCounts(w io.Writer, c *msgbox.Counts) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	rows := []struct {
		name string
		n    int64
	}{
		{"conversations", c.Conversations},
		{"inbox", c.Inbox},
		{"invitations", c.Invitations},
		{"alerts", c.Alerts},
		{"new", c.New},
		{"archived", c.Archived},
		{"trashed", c.Trashed},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\n", r.name, r.n)
	}
	return tw.Flush()
}

func preview(body string) string {
	const width = 40
	r := []rune(body)
	if len(r) <= width {
		return body
	}
	return string(r[:width-3]) + "..."
}
