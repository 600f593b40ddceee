package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kusius/letterbox/internal/cache"
	"github.com/kusius/letterbox/internal/config"
	"github.com/kusius/letterbox/internal/provider/gmail"
	"github.com/kusius/letterbox/internal/store/sqlite"
	mailsync "github.com/kusius/letterbox/internal/sync"
)

var (
	// version is set via ldflags at build time.
	version = "dev"
	cfgFile string
)

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "letterbox",
		Short:   "Offline-first Gmail cache",
		Long:    "A mailbox synchronization engine with an offline cache, backed by Gmail.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if shell, _ := cmd.Flags().GetString("generate-completion"); shell != "" {
				switch shell {
				case "bash":
					return cmd.Root().GenBashCompletion(os.Stdout)
				case "zsh":
					return cmd.Root().GenZshCompletion(os.Stdout)
				case "fish":
					return cmd.Root().GenFishCompletion(os.Stdout, true)
				default:
					return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", shell)
				}
			}
			return cmd.Help()
		},
	}
	root.SetVersionTemplate(fmt.Sprintf("letterbox %s\n", version))
	root.CompletionOptions.DisableDefaultCmd = true
	root.Flags().String("generate-completion", "", "Generate shell completion (bash, zsh, fish)")
	root.Flags().MarkHidden("generate-completion")
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	root.AddCommand(newAuthCmd())
	root.AddCommand(newSyncCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newUnreadCmd())
	root.AddCommand(newShowCmd())
	root.AddCommand(newToggleReadCmd())
	root.AddCommand(newMarkCmd())
	root.AddCommand(newTrashCmd())
	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// openDB creates the data directory and opens the SQLite database.
func openDB() (*sqlite.DB, error) {
	dataDir := config.DataDir()
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "letterbox.db")
	db, err := sqlite.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// loadConfig loads the application configuration from the config file.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		path = filepath.Join(config.ConfigDir(), "config.toml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// resolveGmailCredentials sets Gmail OAuth credentials using the first
// available source: config file, then environment variables.
func resolveGmailCredentials(cfg *config.Config) error {
	if cfg.Gmail.ClientID != "" && cfg.Gmail.ClientSecret != "" {
		gmail.SetCredentials(cfg.Gmail.ClientID, cfg.Gmail.ClientSecret)
		return nil
	}

	clientID := os.Getenv("GMAIL_CLIENT_ID")
	clientSecret := os.Getenv("GMAIL_CLIENT_SECRET")
	if clientID != "" && clientSecret != "" {
		gmail.SetCredentials(clientID, clientSecret)
		return nil
	}

	return gmail.EnsureCredentials()
}

// setup builds the full dependency chain: config, credentials, keyring token
// store, Gmail client, local store, sync engine, and the data source facade.
// The returned cleanup closes the database.
func setup() (*cache.DataSource, *gmail.Client, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := resolveGmailCredentials(cfg); err != nil {
		return nil, nil, nil, err
	}

	db, err := openDB()
	if err != nil {
		return nil, nil, nil, err
	}

	client := newGmailClient()
	engine := mailsync.NewEngine(db, client)
	ds := cache.NewDataSource(db, client, engine, cfg.Sync.AttachmentConcurrency)

	cleanup := func() { db.Close() }
	return ds, client, cleanup, nil
}

// newGmailClient creates a Gmail client over the keyring token store.
func newGmailClient() *gmail.Client {
	return gmail.New(gmail.NewTokenStore())
}
