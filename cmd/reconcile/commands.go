package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"classifieds/internal/app"
	"classifieds/internal/auth"
	"classifieds/internal/config"
	"classifieds/internal/db"
	"classifieds/internal/logger"
	"classifieds/internal/reconcile"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// withApp loads config, connects storage and hands the assembled services to fn.
func withApp(ctx context.Context, fn func(context.Context, *app.App) error) error {
	logger.Init()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer database.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	return fn(ctx, app.New(cfg, database, rdb))
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseSince accepts RFC3339 or a duration looking back from now.
func parseSince(value string, now time.Time) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return nil, fmt.Errorf("invalid --since %q: want RFC3339 or a duration like 24h", value)
	}
	t := now.Add(-d)
	return &t, nil
}

func syncCmd() *cobra.Command {
	var (
		limit int
		since string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Backfill ledger entries for paid sessions that were never recorded",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseSince(since, time.Now())
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Syncer.SyncTransactions(ctx, limit, from)
				if err != nil {
					_, msg := reconcile.SyncFailure(err)
					return fmt.Errorf("sync failed: %s: %w", msg, err)
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", reconcile.DefaultSyncLimit, "Maximum sessions to inspect")
	cmd.Flags().StringVar(&since, "since", "", "Only sessions created after this (RFC3339 or duration)")

	return cmd
}

func expireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire-promotions",
		Short: "Clear listing promotions whose window has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				n, err := a.Listings.ExpireStale(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "expired %d promotions\n", n)
				return nil
			})
		},
	}
}

func revenueCmd() *cobra.Command {
	var (
		since  string
		recent int
	)

	cmd := &cobra.Command{
		Use:   "revenue",
		Short: "Print revenue statistics from completed ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseSince(since, time.Now())
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				stats, err := a.Ledger.RevenueStats(ctx, from, recent)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), stats)
			})
		},
	}

	cmd.Flags().StringVar(&since, "since", "", "Lower bound (RFC3339 or duration)")
	cmd.Flags().IntVar(&recent, "recent", 10, "Number of recent transactions to include")

	return cmd
}

func tokenCmd() *cobra.Command {
	var (
		email string
		role  string
		ttl   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token [user-id]",
		Short: "Issue an access token, for local testing and operator scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			token, err := auth.GenerateAccessTokenWithTTL(args[0], email, role, cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email claim")
	cmd.Flags().StringVar(&role, "role", auth.RoleUser, "Role claim (user or admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.AccessTokenTTL, "Token lifetime")

	return cmd
}
