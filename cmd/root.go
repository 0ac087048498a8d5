package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hmans/taskgraph/internal/auth"
	"github.com/hmans/taskgraph/internal/config"
	"github.com/hmans/taskgraph/internal/graph"
	"github.com/hmans/taskgraph/internal/logging"
	"github.com/hmans/taskgraph/internal/media"
	"github.com/hmans/taskgraph/internal/search"
	"github.com/hmans/taskgraph/internal/social"
	"github.com/hmans/taskgraph/internal/store"
)

var (
	cfg        *config.Config
	logger     *zap.Logger
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "taskgraph",
	Short: "A GraphQL API for users, profiles and tasks",
	Long: `taskgraph serves a relay-compatible GraphQL API for user profiles and
personal task lists, with social sign-in, file uploads and live subscriptions.

Configuration is read from taskgraph.toml (if present) and TASKGRAPH_*
environment variables.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		logger, err = logging.New(cfg.Log)
		if err != nil {
			return fmt.Errorf("creating logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to the config file (default: ./taskgraph.toml)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore connects to the configured database, applying migrations when
// auto-migrate is on.
func openStore(ctx context.Context) (*store.Store, error) {
	st, err := store.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := st.Migrate(); err != nil {
			st.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
	}
	return st, nil
}

// app holds the collaborators shared by the server and local execution.
type app struct {
	store    *store.Store
	resolver *graph.Resolver
	index    *search.Index
}

// newApp opens the store and builds the resolver. The search index is
// filled from the database and kept current until ctx is done.
func newApp(ctx context.Context) (*app, error) {
	st, err := openStore(ctx)
	if err != nil {
		return nil, err
	}

	r := graph.NewResolver(st)
	r.Logger = logger
	r.MaxLimit = cfg.Pagination.MaxLimit
	r.Providers = social.NewRegistry(
		social.NewGoogle(cfg.Social.GoogleUserInfoURL),
		social.NewGitHub(cfg.Social.GitHubAPIURL),
	)

	if cfg.Auth.Secret != "" {
		ttl, err := cfg.TokenTTL()
		if err != nil {
			st.Close()
			return nil, err
		}
		tokens, err := auth.NewTokens(cfg.Auth.Secret, cfg.Auth.Issuer, ttl)
		if err != nil {
			st.Close()
			return nil, err
		}
		r.Tokens = tokens
		r.Auth = auth.NewAuthenticator(tokens, st)
	} else {
		logger.Warn("no auth secret configured; authenticated operations are disabled")
	}

	storage, err := media.New(ctx, cfg.Media)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("creating media storage: %w", err)
	}
	r.Media = storage

	idx, err := buildIndex(ctx, st)
	if err != nil {
		st.Close()
		return nil, err
	}
	r.Search = idx

	return &app{store: st, resolver: r, index: idx}, nil
}

func buildIndex(ctx context.Context, st *store.Store) (*search.Index, error) {
	idx, err := search.NewIndex()
	if err != nil {
		return nil, fmt.Errorf("creating search index: %w", err)
	}

	// Subscribe before the initial load so no change slips between the two
	events, unsubscribe := st.SubscribeAll()
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()

	start := time.Now()
	tasks, err := st.ListTasks(ctx, store.TaskFilter{}, store.Page{})
	if err != nil {
		idx.Close()
		return nil, fmt.Errorf("loading tasks for search: %w", err)
	}
	if err := idx.IndexTasks(tasks); err != nil {
		idx.Close()
		return nil, fmt.Errorf("indexing tasks: %w", err)
	}
	logger.Debug("search index ready", zap.Int("tasks", len(tasks)), zap.Duration("took", time.Since(start)))

	go idx.Sync(ctx, events, logger)
	return idx, nil
}

func (a *app) Close() {
	if err := a.index.Close(); err != nil {
		logger.Warn("closing search index", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		logger.Warn("closing database", zap.Error(err))
	}
}
