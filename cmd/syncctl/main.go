package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"manga-bookmark-bot/internal/app"
	"manga-bookmark-bot/internal/domain"
	"manga-bookmark-bot/internal/infra/config"
	applog "manga-bookmark-bot/internal/infra/log"
	"manga-bookmark-bot/internal/infra/vault"
)

var (
	cfg    config.AppConfig
	logger zerolog.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "syncctl",
		Short:         "Operate the bookmark synchronization engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := config.Parse()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			cfg = parsed
			logger = applog.New(os.Stderr, cfg.AppEnv, "syncctl")
			return nil
		},
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(updateCmd())
	rootCmd.AddCommand(websitesCmd())
	rootCmd.AddCommand(credentialsCmd())
	rootCmd.AddCommand(keygenCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func withApp(cmd *cobra.Command, fn func(a *app.App) error) error {
	a, err := app.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Synchronize every active user once",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				report := a.Syncer.RunFleet(cmd.Context())
				printReport(cmd.OutOrStdout(), report)
				if report.Err != nil {
					return fmt.Errorf("run %s incomplete: %w", report.ID, report.Err)
				}
				return nil
			})
		},
	}
}

func updateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update <chat_id>",
		Short: "Synchronize all accounts of one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat_id %q", args[0])
			}
			return withApp(cmd, func(a *app.App) error {
				report, err := a.Syncer.ManualUpdate(cmd.Context(), chatID)
				if err != nil {
					return err
				}
				printReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}
}

func websitesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "websites",
		Short: "Sync the website catalog and print it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app.App) error {
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tLINK\tADAPTER")
				for _, site := range a.Websites {
					fmt.Fprintf(w, "%d\t%s\t%s\t%t\n", site.ID, site.Name, site.Link, a.Scrapers.Supports(site.Name))
				}
				return w.Flush()
			})
		},
	}
}

func credentialsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "credentials <chat_id> <website> <login>",
		Short: "Store credentials for a user account; the password is read from stdin",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			chatID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid chat_id %q", args[0])
			}
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			return withApp(cmd, func(a *app.App) error {
				site, err := a.Repo.GetWebsiteByName(cmd.Context(), args[1])
				if err != nil {
					return fmt.Errorf("website %q: %w", args[1], err)
				}
				if _, _, err := a.Repo.UpsertUser(cmd.Context(), chatID); err != nil {
					return err
				}
				account, err := a.Credentials.SaveCredentials(cmd.Context(), chatID, site.ID, domain.NewSecret(args[2]), password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "account %d saved for chat %d on %s\n", account.ID, chatID, site.Name)
				return nil
			})
		},
	}
}

func keygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new CREDENTIALS_KEY",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := vault.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

func readPassword(r io.Reader) (domain.Secret, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is empty")
	}
	return domain.NewSecret(password), nil
}

func printReport(out io.Writer, report domain.RunReport) {
	fmt.Fprintf(out, "run %s (%s): %d succeeded, %d failed, %d skipped in %s\n",
		report.ID, report.Trigger, report.Succeeded, report.Failed, report.Skipped,
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	if len(report.Accounts) == 0 {
		return
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CHAT\tACCOUNT\tWEBSITE\tSTATUS\tKIND\tINSERTED\tUPDATED")
	for _, acc := range report.Accounts {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%d\t%d\n",
			acc.ChatID, acc.AccountID, acc.Website, acc.Status, domain.FailureKind(acc.Err), acc.Result.Inserted, acc.Result.Updated)
	}
	_ = w.Flush()
}
