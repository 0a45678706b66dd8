package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/srms-platform/srms-backend/pkg/auth"
	"github.com/srms-platform/srms-backend/pkg/cache"
	"github.com/srms-platform/srms-backend/pkg/config"
	"github.com/srms-platform/srms-backend/pkg/enums"
	"github.com/srms-platform/srms-backend/pkg/logger"
	"github.com/srms-platform/srms-backend/pkg/redis"
)

const version = "0.1.0"

// cacheAdmin is the slice of cache.Manager the commands drive.
type cacheAdmin interface {
	Names() []string
	ClearAll(ctx context.Context) error
	Clear(ctx context.Context, name string) error
	Evict(ctx context.Context, name string, keys ...string) error
}

// openCaches connects to the shared cache backend. The returned func
// releases the connection.
type openCaches func(ctx context.Context) (cacheAdmin, func(), error)

// loadJWT reads the signing settings shared with the gateway.
type loadJWT func() (config.JWTConfig, error)

// deps are the external resources commands reach for, swapped in tests.
type deps struct {
	caches  openCaches
	jwt     loadJWT
	letters openDeadLetters
}

func envJWT() (config.JWTConfig, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.JWTConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg.JWT, nil
}

// redisCaches opens the same Redis-backed caches the api uses so that
// clearing from the CLI is visible to every api instance.
func redisCaches(logg *logger.Logger) openCaches {
	return func(ctx context.Context) (cacheAdmin, func(), error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, nil, fmt.Errorf("load config: %w", err)
		}
		if !cfg.Redis.Enabled() {
			return nil, nil, fmt.Errorf("redis is not configured; in-process caches can only be cleared through the api")
		}
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		cacheCfg := cfg.Cache
		cacheCfg.Backend = "redis"
		set, err := cache.Build(cacheCfg, client, logg, nil)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return set.Manager, func() { _ = client.Close() }, nil
	}
}

func newRootCmd(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:     "srmsctl",
		Short:   "SRMS administration CLI",
		Version: version,
		Long: `Administrative commands for the SRMS backend. Cache commands talk to the
shared Redis instance and dlq commands to the database, both configured
through the SRMS_ environment variables.`,
		Example: `  # List every named cache
  $ srmsctl cache list

  # Clear one cache, or all of them
  $ srmsctl cache clear customers
  $ srmsctl cache clear --all

  # Drop single entries
  $ srmsctl cache evict warehouses getById:5b0d8f9e-4c55-4d43-9f57-0a3f9c1c2b11:false

  # Mint a local development token for the gateway
  $ srmsctl token --subject dev-user --roles manager,viewer

  # Alerts that never reached Pub/Sub in the last day
  $ srmsctl dlq list --since 24h`,
		SilenceUsage: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetVersionTemplate(fmt.Sprintf("srmsctl version %s\n", version))
	root.AddCommand(newCacheCmd(d.caches), newTokenCmd(d.jwt), newDLQCmd(d.letters))
	return root
}

func newCacheCmd(open openCaches) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and clear the named caches",
	}
	cmd.AddCommand(newCacheListCmd(open), newCacheClearCmd(open), newCacheEvictCmd(open))
	return cmd
}

func newCacheListCmd(open openCaches) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the named caches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCaches(cmd, open, func(ctx context.Context, caches cacheAdmin) error {
				for _, name := range caches.Names() {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
}

func newCacheClearCmd(open openCaches) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "clear [name...]",
		Short: "Clear one or more caches",
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) > 0) {
				return fmt.Errorf("pass cache names or --all, not both")
			}
			return withCaches(cmd, open, func(ctx context.Context, caches cacheAdmin) error {
				if all {
					if err := caches.ClearAll(ctx); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", strings.Join(caches.Names(), ", "))
					return nil
				}
				for _, name := range args {
					if err := caches.Clear(ctx, name); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", name)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "clear every cache")
	return cmd
}

func newCacheEvictCmd(open openCaches) *cobra.Command {
	return &cobra.Command{
		Use:   "evict <name> <key>...",
		Short: "Remove single entries from a cache",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCaches(cmd, open, func(ctx context.Context, caches cacheAdmin) error {
				if err := caches.Evict(ctx, args[0], args[1:]...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "evicted %d key(s) from %s\n", len(args)-1, args[0])
				return nil
			})
		},
	}
}

func newTokenCmd(load loadJWT) *cobra.Command {
	var (
		subject string
		roles   string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 access token for local development",
		Long: `Mint an access token in the identity provider's claim shape, signed with
SRMS_JWT_SECRET. Only useful against a gateway configured for HS256.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			parsed := enums.ParseRoles(roles)
			if len(parsed) == 0 {
				return fmt.Errorf("no known roles in %q", roles)
			}
			token, err := auth.MintAccessToken(cfg, time.Now(), ttl, auth.AccessTokenPayload{
				Subject:  subject,
				Username: subject,
				Roles:    parsed,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVarP(&subject, "subject", "s", "", "token subject")
	cmd.Flags().StringVarP(&roles, "roles", "r", string(enums.RoleViewer), "comma-separated realm roles")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func withCaches(cmd *cobra.Command, open openCaches, fn func(context.Context, cacheAdmin) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	caches, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(ctx, caches)
}
