// Command bookstorectl runs database migrations and bootstraps admin accounts.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"bookstore/internal/apperr"
	"bookstore/internal/config"
	"bookstore/internal/logger"
	"bookstore/internal/repository"
	"bookstore/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			fmt.Fprintln(os.Stderr, "Error:", appErr.Message)
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bookstorectl",
		Short:         "Administrative tasks for the bookstore API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newMigrateCmd(), newCreateAdminCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down|status",
		Short:     "Apply, roll back or list schema migrations",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPool(cmd.Context(), func(pool *pgxpool.Pool, _ *zap.Logger) error {
				return config.Migrate(cmd.Context(), pool, args[0])
			})
		},
	}
}

func newCreateAdminCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an admin account",
		Long:  "Create an admin account. The password is prompted for on a terminal, otherwise read from the first line of stdin.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			password, err := readNewPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			return withPool(cmd.Context(), func(pool *pgxpool.Pool, log *zap.Logger) error {
				users := service.NewUserService(repository.NewUserRepository(pool), repository.NewTransactor(pool), log)
				user, err := users.CreateAdmin(cmd.Context(), email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created admin %s (id %d)\n", user.Email, user.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address of the new admin")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// withPool loads configuration, connects and hands the pool to fn
func withPool(ctx context.Context, fn func(*pgxpool.Pool, *zap.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	pool, err := config.ConnectDB(ctx, cfg.DB, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	return fn(pool, log)
}

// readNewPassword prompts twice on a terminal. Piped input is read once.
func readNewPassword(in io.Reader, prompt io.Writer) (string, error) {
	f, ok := in.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		password := strings.TrimRight(line, "\r\n")
		if password == "" {
			return "", errors.New("no password given on stdin")
		}
		return password, nil
	}

	first, err := promptPassword(f, prompt, "Password: ")
	if err != nil {
		return "", err
	}
	second, err := promptPassword(f, prompt, "Confirm password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}

func promptPassword(f *os.File, prompt io.Writer, label string) (string, error) {
	fmt.Fprint(prompt, label)
	raw, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(raw), nil
}
