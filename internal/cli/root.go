// Package cli defines the Cobra commands for the tgpull CLI. This
// file contains the root command and the shared wiring that the
// subcommands build on.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tgpull/internal/config"
	"tgpull/internal/domain"
	"tgpull/internal/index"
	"tgpull/internal/store/sqlite"
	"tgpull/internal/telegram"
)

var (
	verbose bool
	dataDir string
	version = "dev" // set via ldflags at build time
)

var rootCmd = &cobra.Command{
	Use:   "tgpull",
	Short: "Download media from your Telegram conversations",
	Long: `tgpull signs in to your Telegram account, lists your
conversations, and downloads message attachments to local storage
under deterministic, collision-free file names.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log protocol activity to stderr")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Override the data directory (session, db, downloads)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(chatsCmd)
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(historyCmd)
}

// app bundles the wired collaborators a command needs.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	svc    *telegram.Service
	store  *sqlite.Store
	index  *index.Index
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	logger := zap.NewNop()
	if verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
	}

	apiID, apiHash, err := config.APICredentials()
	if err != nil {
		return nil, err
	}

	svc := telegram.NewService(cfg.SessionPath(), logger)
	if err := svc.Configure(apiID, apiHash); err != nil {
		return nil, err
	}

	store, err := sqlite.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		svc:    svc,
		store:  store,
		index:  index.New(svc),
	}, nil
}

func (a *app) close() {
	a.store.Close()
	a.logger.Sync()
}

func parseChatID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("chat id must be an integer, got %q", raw)
	}
	return id, nil
}

// resolveConversation finds a conversation by id, preferring the local
// cache and falling back to a live dialog fetch.
func (a *app) resolveConversation(ctx context.Context, id int64) (domain.Conversation, error) {
	cached, err := a.store.ListChats(ctx)
	if err == nil {
		for _, conv := range cached {
			if conv.ID == id {
				return conv, nil
			}
		}
	}

	convs, err := a.index.ListConversations(ctx, 500)
	if err != nil {
		return domain.Conversation{}, err
	}
	for _, conv := range convs {
		if conv.ID == id {
			return conv, nil
		}
	}
	return domain.Conversation{}, errors.Join(domain.ErrConversationNotFound, fmt.Errorf("chat %d is not in your dialogs", id))
}
