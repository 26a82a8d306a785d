package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"blip/internal/client"
	"blip/internal/pkg/errs"
	"blip/internal/pkg/logx"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the local identity and the name messages are sent under",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := openViewer()
		defer v.close()

		id := v.profile.Identity()
		name, err := v.profile.AuthorName(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "id:      %s\n", id.ID)
		fmt.Fprintf(out, "since:   %s\n", id.CreatedAt.Local().Format("2006-01-02 15:04"))
		if id.DisplayName == "" {
			fmt.Fprintf(out, "name:    %s %s\n", name, dimColor.Sprint("(generated)"))
			return nil
		}

		rec, err := v.api.LookupName(cmd.Context(), id.ID)
		if err != nil {
			logx.Debug("Registered record unavailable.", "error", err.Error())
			fmt.Fprintf(out, "name:    %s\n", name)
			return nil
		}
		fmt.Fprintf(out, "name:    %s\n", renderName(name, rec.NameStyle))
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <text...>",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		v := openViewer()
		defer v.close()

		text := strings.Join(args, " ")
		composer := client.NewComposer(nil, v.api)

		preview := composer.Preview(text)
		if !preview.Allowed {
			errColor.Fprintln(cmd.ErrOrStderr(), preview.Output)
		}

		name, err := v.profile.AuthorName(cmd.Context())
		if err != nil {
			return err
		}

		sent, err := composer.Submit(cmd.Context(), v.profile.Identity().ID, name, text)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), formatMessage(sent))
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the chat history and follow new messages",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		v := openViewer()
		id := v.profile.Identity()
		name, err := v.profile.AuthorName(ctx)
		// release the local store so other commands can run while watching
		v.close()
		if err != nil {
			return err
		}

		if _, err := v.api.LogVisit(ctx, id.ID); err != nil {
			logx.Debug("Visit not logged.", "error", err.Error())
		}

		session, snapshot, err := client.OpenSession(ctx, v.api, id.ID, name)
		if err != nil {
			if client.IsStale(err) {
				return nil
			}
			return err
		}
		defer session.Close()

		out := cmd.OutOrStdout()
		for _, m := range snapshot {
			fmt.Fprintln(out, formatMessage(m))
		}
		dimColor.Fprintf(out, "-- watching as %s, Ctrl+C to leave --\n", name)

		for {
			select {
			case <-ctx.Done():
				return nil
			case m, ok := <-session.Updates():
				if !ok {
					return session.Err()
				}
				fmt.Fprintln(out, formatMessage(m))
			}
		}
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the local identity and generated name",
	RunE: func(cmd *cobra.Command, args []string) error {
		v := openViewer()
		defer v.close()

		if err := v.profile.Reset(); err != nil {
			return fmt.Errorf("reset identity: %w", err)
		}
		okColor.Fprintln(cmd.OutOrStdout(), "Local identity cleared.")
		return nil
	},
}

// describe turns a server error into a single line for the terminal.
func describe(err error) string {
	var customErr *errs.CustomError
	if errors.As(err, &customErr) {
		return customErr.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "the server did not answer in time"
	}
	return err.Error()
}
