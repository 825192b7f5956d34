package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/emersion/go-message/mail"
	"github.com/spf13/cobra"

	"github.com/infodancer/mailcapture"
	mcerrors "github.com/infodancer/mailcapture/errors"
)

func newCountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of captured messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			n, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
			return err
		},
	}
}

func newListCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List captured messages, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			captures, err := store.List(cmd.Context(), limit)
			// Unreadable records are logged by the store; show the rest.
			if err != nil && !errors.Is(err, mcerrors.ErrCorruptRecord) {
				return err
			}
			return writeList(cmd.OutOrStdout(), captures)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of messages to list")
	return cmd
}

func writeList(w io.Writer, captures []*mailcapture.Capture) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCAPTURED\tFROM\tTO\tSUBJECT\tSIZE")
	for _, c := range captures {
		env := c.Envelope()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\n",
			c.ID,
			c.CapturedAt.Format("2006-01-02 15:04:05"),
			env.From,
			strings.Join(env.Recipients, ","),
			c.Subject(),
			c.Size())
	}
	return tw.Flush()
}

func newShowCmd(a *app) *cobra.Command {
	var parsed bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a captured message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			c, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !parsed {
				_, err = c.WriteTo(cmd.OutOrStdout())
				return err
			}
			return writeSummary(cmd.OutOrStdout(), c)
		},
	}
	cmd.Flags().BoolVar(&parsed, "parsed", false, "Print a decoded summary instead of the raw message")
	return cmd
}

func writeSummary(w io.Writer, c *mailcapture.Capture) error {
	msg, err := c.Parse()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", c.ID)
	fmt.Fprintf(tw, "Captured:\t%s\n", c.CapturedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(tw, "Message-ID:\t%s\n", msg.MessageID)
	fmt.Fprintf(tw, "Date:\t%s\n", msg.Date.Format("Mon, 02 Jan 2006 15:04:05 -0700"))
	fmt.Fprintf(tw, "From:\t%s\n", formatAddresses(msg.From))
	fmt.Fprintf(tw, "To:\t%s\n", formatAddresses(msg.To))
	if len(msg.Cc) > 0 {
		fmt.Fprintf(tw, "Cc:\t%s\n", formatAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		fmt.Fprintf(tw, "Bcc:\t%s\n", formatAddresses(msg.Bcc))
	}
	fmt.Fprintf(tw, "Subject:\t%s\n", msg.Subject)
	for _, att := range msg.Attachments {
		fmt.Fprintf(tw, "Attachment:\t%s (%s, %d bytes)\n", att.Filename, att.ContentType, len(att.Content))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if msg.Text != "" {
		fmt.Fprintf(w, "\n%s\n", strings.TrimRight(msg.Text, "\r\n"))
	} else if msg.HTML != "" {
		fmt.Fprintf(w, "\n[html, %d bytes]\n", len(msg.HTML))
	}
	return nil
}

func formatAddresses(addrs []*mail.Address) string {
	parts := make([]string, len(addrs))
	for i, addr := range addrs {
		parts[i] = addr.String()
	}
	return strings.Join(parts, ", ")
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete captured messages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			var errs []error
			for _, id := range args {
				if err := store.DeleteOne(cmd.Context(), id); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
}

func newPurgeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every captured message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			n, err := store.Count(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.DeleteAll(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d messages\n", n)
			return err
		},
	}
}
