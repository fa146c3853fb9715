package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/inboxzero/inboxzero/internal/store"
)

func newProcessCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run one triage pass over a single account's inbox",
		Long: `Run one account's new messages through the full automation pipeline
once (rules, cold-email check, categorization, reply tracking, event
detection) and exit. The account must already be connected through the
serve command's /auth/google/login flow.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(account)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "Email address of the connected account to process (required)")
	_ = cmd.MarkFlagRequired("account")

	return cmd
}

func runProcess(email string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	app, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer closeCancel()
		app.Close(closeCtx)
	}()

	account, err := app.store.GetAccountByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("account %s is not connected; run serve and visit /auth/google/login first", email)
	}
	if err != nil {
		return err
	}

	mailbox, err := app.clients.Mailbox(ctx, account)
	if err != nil {
		return fmt.Errorf("gmail client: %w", err)
	}
	cal, err := app.clients.Calendar(ctx, account)
	if err != nil {
		return fmt.Errorf("calendar client: %w", err)
	}

	processed, err := app.pipeline.ProcessAccount(ctx, account, mailbox, cal)
	if err != nil {
		return fmt.Errorf("process account: %w", err)
	}

	fmt.Printf("Processed %d message(s) for %s\n", processed, email)
	return nil
}
