package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/titpetric/hilink-cli/client"
	"github.com/titpetric/hilink-cli/model"
	"github.com/titpetric/hilink-cli/storage"
)

// deviceDateLayout is the local time format the device reports.
const deviceDateLayout = "2006-01-02 15:04:05"

func (a *app) newSMSCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sms",
		Short: "List, send, mark and delete SMS messages",
	}

	cmd.AddCommand(a.newSMSListCmd())
	cmd.AddCommand(a.newSMSCountCmd())
	cmd.AddCommand(a.newSMSSendCmd())
	cmd.AddCommand(a.newSMSReadCmd())
	cmd.AddCommand(a.newSMSDeleteCmd())

	return cmd
}

func (a *app) newSMSListCmd() *cobra.Command {
	var (
		box      string
		count    int
		page     int
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List messages in a folder",
		Long: `List one page of messages.

Folders: inbox, sent, draft, trash, sim-inbox, sim-sent, sim-draft,
mix-inbox, mix-sent, mix-draft.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			boxType, err := model.ParseBoxType(box)
			if err != nil {
				return err
			}
			return a.withClient(cmd.Context(), true, func(ctx context.Context, c *client.Client, _ storage.Store) error {
				messages := c.SMS().List(ctx, boxType, count, page)
				if jsonMode {
					return outputJSON(cmd.OutOrStdout(), messages)
				}
				outputTable(cmd.OutOrStdout(), boxType, messages, time.Now())
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&box, "box", "inbox", "folder to list")
	cmd.Flags().IntVar(&count, "count", 20, "messages per page")
	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "print JSON instead of a table")

	return cmd
}

func (a *app) newSMSCountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show message counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), true, func(ctx context.Context, c *client.Client, _ storage.Store) error {
				count, ok := c.SMS().Count(ctx)
				if !ok {
					return fmt.Errorf("failed to read message counters")
				}
				outputCount(cmd.OutOrStdout(), count)
				return nil
			})
		},
	}
}

func (a *app) newSMSSendCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "send --message TEXT NUMBER...",
		Short: "Send a message to one or more numbers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), true, func(ctx context.Context, c *client.Client, _ storage.Store) error {
				if !c.SMS().Send(ctx, message, args...) {
					return fmt.Errorf("device did not accept the message")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sent to %d recipient(s)\n", len(args))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "message text")
	_ = cmd.MarkFlagRequired("message")

	return cmd
}

func (a *app) newSMSReadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read INDEX",
		Short: "Mark a message as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), true, func(ctx context.Context, c *client.Client, _ storage.Store) error {
				if !c.SMS().MarkAsRead(ctx, args[0]) {
					return fmt.Errorf("failed to mark message %s as read", args[0])
				}
				return nil
			})
		},
	}
}

func (a *app) newSMSDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete INDEX",
		Short: "Delete a message",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), true, func(ctx context.Context, c *client.Client, _ storage.Store) error {
				if !c.SMS().Delete(ctx, args[0]) {
					return fmt.Errorf("failed to delete message %s", args[0])
				}
				return nil
			})
		},
	}
}

// outputTable formats SMS messages as a markdown table
func outputTable(w io.Writer, box model.BoxType, messages []model.SMSMessage, now time.Time) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)

	peer := "Sender"
	if box.Outgoing() {
		peer = "To"
	}
	table.SetHeader([]string{"#", "Index", peer, "Message", "Date/Age"})

	for i, msg := range messages {
		index := msg.Index
		if msg.Unread {
			index += " *"
		}
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			index,
			msg.From,
			truncate(msg.Content, 50),
			formatTime(msg.Date, now),
		})
	}

	table.Render()
}

func outputCount(w io.Writer, count model.SMSCount) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetHeader([]string{"Store", "Unread", "Inbox", "Outbox", "Draft", "Max"})
	table.Append(countRow("Device", count.LocalUnread, count.LocalInbox, count.LocalOutbox, count.LocalDraft, count.LocalMax))
	table.Append(countRow("SIM", count.SimUnread, count.SimInbox, count.SimOutbox, count.SimDraft, count.SimMax))
	table.Render()
}

func countRow(name string, values ...int) []string {
	row := []string{name}
	for _, v := range values {
		row = append(row, fmt.Sprintf("%d", v))
	}
	return row
}

// outputJSON formats SMS messages as indented JSON
func outputJSON(w io.Writer, messages []model.SMSMessage) error {
	data, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// truncate shortens s to max runes
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max]) + "..."
	}
	return s
}

// formatTime renders a device timestamp relative to now. Unparsable
// values are returned unchanged.
func formatTime(date string, now time.Time) string {
	if date == "" {
		return ""
	}
	tt, err := time.ParseInLocation(deviceDateLayout, date, now.Location())
	if err != nil {
		return date
	}

	diff := now.Sub(tt)
	if diff < 0 {
		return tt.Format("02.01.2006 15:04")
	}

	hours := int(diff.Hours())
	days := hours / 24

	if days > 0 {
		return fmt.Sprintf("%d days ago", days)
	}
	if hours > 0 {
		return fmt.Sprintf("%d hours ago", hours)
	}

	minutes := int(diff.Minutes())
	if minutes > 0 {
		return fmt.Sprintf("%d minutes ago", minutes)
	}

	return "just now"
}
