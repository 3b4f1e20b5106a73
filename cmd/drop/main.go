package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"drop-go/internal/app"
	"drop-go/internal/client"
	"drop-go/internal/config"
	"drop-go/internal/drop"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates a DropApp. The caller must defer app.Close().
// command identifies the CLI command being run (e.g. "serve", "sweep").
func newApp(cmd *cobra.Command, command string) (*app.DropApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	a, err := app.NewDropApp(cmd.Context(), cfg, command, verbose)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// readPassphrase prompts on stderr and reads a passphrase without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pass), nil
}

var rootCmd = &cobra.Command{
	Use:     "drop",
	Short:   "Local file and text drop box",
	Version: version,
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server and retention sweeper",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "serve")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return a.Serve(ctx)
	},
}

// sweep command
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire old entries once",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "sweep")
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Sweep(cmd.Context())
		for _, name := range res.Deleted {
			fmt.Printf("expired  %s\n", name)
		}
		if err != nil {
			return fmt.Errorf("sweep incomplete: %w", err)
		}
		if len(res.Deleted) == 0 {
			fmt.Println("Nothing to expire.")
		}
		return nil
	},
}

// inventory command
var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "List stored entries grouped by date",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "inventory")
		if err != nil {
			return err
		}
		defer a.Close()

		inv, hash, err := a.Inventory(cmd.Context())
		if err != nil {
			return err
		}

		if inv.Empty() {
			fmt.Println("No uploads.")
		}
		for _, b := range inv.Buckets {
			fmt.Printf("%s\n", b.Label)
			for _, f := range b.Folders {
				fmt.Printf("  %s/  (%d file(s))\n", f.Name, len(f.Files))
			}
			for _, f := range b.Files {
				fmt.Printf("  %s  %s\n", f.Name, drop.FormatSize(f.Size))
			}
		}
		fmt.Printf("\nfingerprint: %s\n", hash)
		return nil
	},
}

// fingerprint command
var fingerprintCmd = &cobra.Command{
	Use:   "fingerprint",
	Short: "Print the listing fingerprint",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "fingerprint")
		if err != nil {
			return err
		}
		defer a.Close()

		_, hash, err := a.Inventory(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(hash)
		return nil
	},
}

// pack command
var packCmd = &cobra.Command{
	Use:   "pack NAME",
	Short: "Write a folder as a zip archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = args[0] + ".zip"
		}

		a, err := newApp(cmd, "pack")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Pack(cmd.Context(), args[0], out); err != nil {
			if errors.Is(err, drop.ErrNotFound) {
				return fmt.Errorf("no folder named %q", args[0])
			}
			return err
		}
		fmt.Printf("Wrote %s\n", out)
		return nil
	},
}

// delete command
var deleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a top-level file or folder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "delete")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Delete(cmd.Context(), args[0]); err != nil {
			if errors.Is(err, drop.ErrNotFound) {
				return fmt.Errorf("no entry named %q", args[0])
			}
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View recent uploads, deletions and expiries",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history")
		if err != nil {
			return err
		}
		defer a.Close()

		events, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}

		if len(events) == 0 {
			fmt.Println("No events recorded.")
			return nil
		}

		for _, ev := range events {
			fmt.Printf("%s  %-7s  %s  %s\n",
				ev.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				ev.Kind,
				ev.Name,
				ev.Detail,
			)
		}
		return nil
	},
}

// watch command
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print a line whenever a running server's listing changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		interval, _ := cmd.Flags().GetDuration("interval")
		verbose, _ := cmd.Flags().GetBool("verbose")

		c := client.New(serverURL, app.NewConsoleLogger(verbose))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := c.Health(ctx); err != nil {
			return err
		}
		fmt.Printf("Watching %s\n", serverURL)
		return c.Watch(ctx, interval, func(s drop.UpdateStatus) {
			fmt.Printf("%s  updated  %s\n", time.Now().Format("15:04:05"), s.Hash)
		})
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage vault encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the age key pair used to encrypt vault archives",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("getting defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("reading config: %w", err)
		}

		pass, err := readPassphrase("Passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		confirm, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		if pass != confirm {
			return errors.New("passphrases do not match")
		}

		if err := app.SetupEncryption(cfg, pass, force); err != nil {
			return err
		}
		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		if cfg.Encryption.Type != "age" {
			fmt.Println("Set [encryption] type = \"age\" to encrypt vault archives.")
		}
		return nil
	},
}

// vault command
var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Inspect archives of expired entries",
}

var vaultListCmd = &cobra.Command{
	Use:   "list [PREFIX]",
	Short: "List vault archives, optionally by date prefix (YYYYMMDD)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}

		a, err := newApp(cmd, "vault-list")
		if err != nil {
			return err
		}
		defer a.Close()

		keys, err := a.VaultList(cmd.Context(), prefix)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			fmt.Println("No archives.")
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return nil
	},
}

var vaultRestoreCmd = &cobra.Command{
	Use:   "restore KEY",
	Short: "Fetch an archive from the vault as a zip file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = app.RestoredName(key)
		}

		a, err := newApp(cmd, "vault-restore")
		if err != nil {
			return err
		}
		defer a.Close()

		err = a.VaultRestore(cmd.Context(), key, out, func() (string, error) {
			return readPassphrase("Passphrase: ")
		})
		if err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", out)
		return nil
	},
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get application defaults
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir:     %s\n", cfg.BaseDir)
		fmt.Printf("Storage Root: %s\n", cfg.StorageRoot)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Get application defaults
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		// Read config
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		// Display config
		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:      %s\n", cfg.BaseDir)
		fmt.Printf("Storage Root:  %s\n", cfg.StorageRoot)
		fmt.Printf("Log Dir:       %s\n", cfg.LogDir)
		fmt.Printf("Listen Addr:   %s\n", cfg.ListenAddr)
		fmt.Printf("Retention:     %s every %s (enabled: %t)\n", cfg.Retention.MaxAge, cfg.Retention.Interval, cfg.Retention.Enabled)
		fmt.Printf("Journal:       %s\n", cfg.Journal.Type)
		fmt.Printf("Vault:         %s\n", cfg.Vault.Type)
		fmt.Printf("Encryption:    %s\n", cfg.Encryption.Type)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug messages")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)
	keysInitCmd.Flags().Bool("force", false, "Replace existing keys")

	// vault subcommands
	vaultCmd.AddCommand(vaultListCmd)
	vaultCmd.AddCommand(vaultRestoreCmd)
	vaultRestoreCmd.Flags().StringP("output", "o", "", "Output file (default: archive name)")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(vaultCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(inventoryCmd)
	rootCmd.AddCommand(fingerprintCmd)
	rootCmd.AddCommand(packCmd)
	packCmd.Flags().StringP("output", "o", "", "Output file (default: NAME.zip)")
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of events to show")
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().String("server", "http://"+config.DefaultListenAddr, "Server base URL")
	watchCmd.Flags().Duration("interval", client.DefaultPollInterval, "Poll interval")
}
