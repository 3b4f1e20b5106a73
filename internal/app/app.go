package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"drop-go/internal/config"
	"drop-go/internal/database"
	"drop-go/internal/drop"
	"drop-go/internal/encryption"
	"drop-go/internal/fs"
	"drop-go/internal/server"
	"drop-go/internal/vault"
)

// ErrNoVault is returned by vault commands when [vault] type is "none".
var ErrNoVault = errors.New("no vault configured")

const shutdownTimeout = 10 * time.Second

// DropApp is the application layer between the CLI and DropService.
// It constructs all dependencies from config, runs the server and sweeper,
// and releases the journal and log file on Close.
type DropApp struct {
	cfg       *config.Config
	clock     drop.Clock
	storage   *fs.OSStorage
	journal   drop.Journal
	vault     drop.Vault
	encryptor drop.Encryptor
	service   *drop.DropService
	sweeper   *drop.Sweeper
	logger    *slogAdapter
	op        *Operation
	logFile   *os.File
}

// NewDropApp creates a fully wired DropApp from the given config.
// command names the CLI command being run (e.g. "serve", "sweep").
// verbose enables debug logging. The caller must call Close when done.
func NewDropApp(ctx context.Context, cfg *config.Config, command string, verbose bool) (*DropApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	idgen := drop.UUIDGenerator{}
	clock := drop.ZonedClock{Location: cfg.Location()}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	runID := idgen.New()
	slogger, logFile, err := newLogger(cfg.LogDir, runID, level)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	storage, err := fs.NewOSStorage(cfg.StorageRoot)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening storage root: %w", err)
	}

	journal, err := database.NewJournalFromConfig(cfg.Journal)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating journal: %w", err)
	}

	v, err := vault.NewVaultFromConfig(ctx, cfg.Vault)
	if err != nil {
		journal.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating vault: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		journal.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}
	if enc != nil && !enc.IsConfigured() {
		logger.Warn("encryption keys missing; vault archives will fail until 'drop keys init' is run")
	}

	svc := drop.NewDropService(storage, journal, logger, clock, idgen)

	opts := []drop.SweeperOption{
		drop.WithRetention(cfg.Retention.MaxAge.Duration),
		drop.WithInterval(cfg.Retention.Interval.Duration),
		drop.WithJournal(journal, idgen),
	}
	if v != nil {
		opts = append(opts, drop.WithArchiver(drop.NewVaultArchiver(storage, v, enc)))
	}
	sweeper := drop.NewSweeper(storage, clock, logger, opts...)

	op := NewOperation(runID, command, clock.Now())
	logger.Debug("command started", "command", command, "storage_root", storage.Root())

	return &DropApp{
		cfg:       cfg,
		clock:     clock,
		storage:   storage,
		journal:   journal,
		vault:     v,
		encryptor: enc,
		service:   svc,
		sweeper:   sweeper,
		logger:    logger,
		op:        op,
		logFile:   logFile,
	}, nil
}

// Service returns the wired drop service.
func (a *DropApp) Service() *drop.DropService {
	return a.service
}

// Serve runs the HTTP server and, when retention is enabled, the sweeper
// until ctx is cancelled or either of them fails.
func (a *DropApp) Serve(ctx context.Context) error {
	if err := a.checkVault(ctx); err != nil {
		return a.op.Track(err)
	}

	srv := server.New(a.service, a.logger, server.Options{
		MaxUploadBytes: a.cfg.Server.MaxUploadBytes,
		RequestTimeout: a.cfg.Server.RequestTimeout.Duration,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(a.cfg.ListenAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	if a.cfg.Retention.Enabled {
		g.Go(func() error {
			return a.sweeper.Run(gctx)
		})
	} else {
		a.logger.Info("retention sweeper disabled")
	}

	return a.op.Track(g.Wait())
}

// Sweep runs a single retention pass. Entries that could not be expired are
// reported as an error after the pass completes.
func (a *DropApp) Sweep(ctx context.Context) (drop.SweepResult, error) {
	if err := a.checkVault(ctx); err != nil {
		return drop.SweepResult{}, a.op.Track(err)
	}
	res := a.sweeper.SweepOnce(ctx)
	if len(res.Failed) > 0 {
		return res, a.op.Track(fmt.Errorf("%d entries could not be expired: %s", len(res.Failed), strings.Join(res.Failed, ", ")))
	}
	return res, nil
}

// Inventory returns the current listing and its fingerprint.
func (a *DropApp) Inventory(ctx context.Context) (*drop.Inventory, string, error) {
	inv, err := a.service.Inventory(ctx)
	if err != nil {
		return nil, "", a.op.Track(err)
	}
	hash, err := drop.Fingerprint(inv)
	if err != nil {
		return nil, "", a.op.Track(err)
	}
	return inv, hash, nil
}

// Pack writes the zip archive of folder name to outPath. A failed pack leaves
// no file behind.
func (a *DropApp) Pack(ctx context.Context, name, outPath string) error {
	f, err := os.Create(outPath)
	if err != nil {
		return a.op.Track(fmt.Errorf("creating %s: %w", outPath, err))
	}
	if err := a.service.PackFolder(ctx, name, f); err != nil {
		f.Close()
		os.Remove(outPath)
		return a.op.Track(err)
	}
	return a.op.Track(f.Close())
}

// Delete removes the top-level file or folder name.
func (a *DropApp) Delete(ctx context.Context, name string) error {
	return a.op.Track(a.service.DeleteEntry(ctx, name))
}

// History returns the most recent journal events.
func (a *DropApp) History(ctx context.Context, limit int) ([]drop.Event, error) {
	events, err := a.service.History(ctx, limit)
	return events, a.op.Track(err)
}

// VaultList returns the archive keys beginning with prefix.
func (a *DropApp) VaultList(ctx context.Context, prefix string) ([]string, error) {
	if a.vault == nil {
		return nil, a.op.Track(ErrNoVault)
	}
	keys, err := a.vault.List(ctx, prefix)
	if err != nil {
		return nil, a.op.Track(fmt.Errorf("listing vault: %w", err))
	}
	return keys, nil
}

// VaultRestore fetches the archive stored under key and writes the zip to
// outPath, decrypting it first when the key carries an encryption suffix.
// passphrase is only called for encrypted archives.
func (a *DropApp) VaultRestore(ctx context.Context, key, outPath string, passphrase func() (string, error)) error {
	return a.op.Track(a.vaultRestore(ctx, key, outPath, passphrase))
}

func (a *DropApp) vaultRestore(ctx context.Context, key, outPath string, passphrase func() (string, error)) error {
	if a.vault == nil {
		return ErrNoVault
	}

	var sealed bytes.Buffer
	if err := a.vault.Get(ctx, key, &sealed); err != nil {
		return fmt.Errorf("fetching %s: %w", key, err)
	}

	var src io.Reader = &sealed
	if dec := a.decryptorFor(key); dec != nil {
		pass, err := passphrase()
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		dc, err := dec.Unlock(pass)
		if err != nil {
			return fmt.Errorf("unlocking private key: %w", err)
		}
		var plain bytes.Buffer
		if err := dc.Decrypt(&sealed, &plain); err != nil {
			return fmt.Errorf("decrypting %s: %w", key, err)
		}
		src = &plain
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", outPath, err)
	}
	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(outPath)
		return fmt.Errorf("writing %s: %w", outPath, err)
	}
	a.logger.Info("archive restored", "key", key, "path", outPath)
	return f.Close()
}

// decryptorFor returns the encryptor able to open key, or nil for plain archives.
func (a *DropApp) decryptorFor(key string) drop.Encryptor {
	if a.encryptor != nil && strings.HasSuffix(key, a.encryptor.Suffix()) {
		return a.encryptor
	}
	if strings.HasSuffix(key, encryption.AgeSuffix) {
		return encryption.NewAgeEncryptor(a.cfg.Encryption)
	}
	return nil
}

// RestoredName returns the local file name for a vault key: its base name
// with any encryption suffix removed.
func RestoredName(key string) string {
	name := key
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	for _, suffix := range []string{encryption.AgeSuffix, encryption.TestSuffix} {
		name = strings.TrimSuffix(name, suffix)
	}
	return name
}

// checkVault verifies the configured vault before anything is archived to it.
func (a *DropApp) checkVault(ctx context.Context) error {
	if a.vault == nil {
		return nil
	}
	if err := a.vault.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("vault not usable: %w", err)
	}
	return nil
}

// Close finishes the operation and closes the journal and log file.
func (a *DropApp) Close() error {
	var firstErr error

	a.logger.Debug("command finished",
		"command", a.op.Command,
		"status", a.op.Status,
		"elapsed", a.op.Elapsed(a.clock.Now()).Round(time.Millisecond).String())

	if err := a.journal.Close(); err != nil {
		firstErr = fmt.Errorf("closing journal: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// SetupEncryption generates the age key pair named in cfg, protecting the
// private key with passphrase. Existing keys are only replaced when force is set.
func SetupEncryption(cfg *config.Config, passphrase string, force bool) error {
	enc := encryption.NewAgeEncryptor(cfg.Encryption)
	if enc.IsConfigured() && !force {
		return fmt.Errorf("encryption keys already exist at %s", cfg.Encryption.PrivateKeyPath)
	}
	return enc.Setup(passphrase)
}
