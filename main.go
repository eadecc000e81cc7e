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
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"circles/internal/config"
	"circles/internal/core"
	"circles/internal/crypto"
	"circles/internal/discovery"
	"circles/internal/logging"
	"circles/internal/server"
	"circles/internal/storage"
	"circles/internal/tui"
	"circles/internal/wallet"
)

const discoverTimeout = 3 * time.Second

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "circles",
		Short:        "Circles wallet in your terminal",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Create an account or unlock your wallet
  circles

  # Use a directory service found on the local network
  circles --discover

  # Run the directory service
  circles serve --listen :8750

  # Restore a wallet from its magic words
  circles recover
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd)
		},
	}
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(), newRecoverCmd(), newAddressCmd())
	return cmd
}

func runTUI(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	log, closer, err := logging.OpenFile(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := storage.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open wallet: %w", err)
	}
	defer store.Close()

	api := resolveAPI(cmd.Context(), cfg, log)
	log.Info(cmd.Context(), "starting", "api", api, "db", cfg.DBPath)

	app := tui.NewApp(store, core.NewClient(api), cfg, log)
	if _, err := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil {
		return err
	}
	return nil
}

// resolveAPI returns the directory service URL, preferring one announced on
// the local network when discovery is enabled.
func resolveAPI(ctx context.Context, cfg *config.Config, log logging.Logger) string {
	if !cfg.Discover {
		return cfg.APIAddr
	}
	svc, err := discovery.Lookup(ctx, discoverTimeout)
	if err != nil {
		log.Warn(ctx, "directory discovery failed, using configured address", "api", cfg.APIAddr, "error", err)
		return cfg.APIAddr
	}
	log.Info(ctx, "directory discovered", "name", svc.Name, "host", svc.Host, "port", svc.Port)
	return discovery.BaseURL(svc)
}

func newServeCmd() *cobra.Command {
	var noAnnounce bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the username directory service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			log, err := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)
			if err != nil {
				return err
			}

			dir, err := storage.OpenDirectory(cfg.ServerDBPath)
			if err != nil {
				return fmt.Errorf("failed to open directory: %w", err)
			}
			defer dir.Close()

			srv := server.New(dir, cfg.ListenAddr, log)
			if err := srv.Start(); err != nil {
				return err
			}
			defer srv.Stop()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if !noAnnounce {
				host, _ := os.Hostname()
				ann, err := discovery.Announce(host, srv.Port(), server.Version)
				if err != nil {
					log.Warn(ctx, "failed to announce directory", "error", err)
				} else {
					defer ann.Shutdown()
				}
			}

			log.Info(ctx, "directory service listening", "port", srv.Port(), "db", cfg.ServerDBPath)
			<-ctx.Done()
			log.Info(context.Background(), "shutting down")
			return nil
		},
	}
	cmd.Flags().BoolVar(&noAnnounce, "no-announce", false, "Do not announce the service over mDNS")
	return cmd
}

func newRecoverCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "recover [word...]",
		Short: "Restore a wallet from its 24 magic words",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			text := strings.Join(args, " ")
			if text == "" {
				text, err = readLine(cmd.InOrStdin(), out, fmt.Sprintf("Enter your %d magic words:", wallet.PhraseLength))
				if err != nil {
					return err
				}
			}
			phrase, err := wallet.ParsePhrase(text)
			if err != nil {
				return err
			}
			key, err := wallet.FromPhrase(phrase)
			if err != nil {
				return err
			}
			defer wallet.Zero(key[:])

			store, err := storage.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open wallet: %w", err)
			}
			defer store.Close()

			if store.HasWallet() {
				if !force {
					return fmt.Errorf("%w at %s; use --force to replace it", storage.ErrWalletExists, cfg.DBPath)
				}
				if err := store.Wipe(); err != nil {
					return err
				}
			}

			passphrase, err := promptPassphrase(out, true)
			if err != nil {
				return err
			}
			if err := store.CreateWallet(passphrase, key); err != nil {
				return err
			}

			address, err := key.Address()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Wallet restored: %s\n", address)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing wallet")
	return cmd
}

func newAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address",
		Short: "Print the safe address of the stored wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			store, err := storage.Open(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("failed to open wallet: %w", err)
			}
			defer store.Close()
			if !store.HasWallet() {
				return storage.ErrNoWallet
			}

			passphrase, err := promptPassphrase(out, false)
			if err != nil {
				return err
			}
			key, err := store.Unlock(passphrase)
			if err != nil {
				return err
			}
			defer wallet.Zero(key[:])

			address, err := key.Address()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, address)

			acc, err := store.Account()
			switch {
			case err == nil:
				fmt.Fprintf(out, "@%s\n", acc.Username)
			case !errors.Is(err, storage.ErrNoAccount):
				return err
			}
			return nil
		},
	}
}

func readLine(in io.Reader, w io.Writer, prompt string) (string, error) {
	if _, err := fmt.Fprint(w, prompt+"\n> "); err != nil {
		return "", err
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassphrase reads a passphrase without echo, asking twice when
// confirm is set.
func promptPassphrase(w io.Writer, confirm bool) (string, error) {
	read := func(prompt string) (string, error) {
		fmt.Fprint(w, prompt)
		pw, err := readPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}

	passphrase, err := read("Passphrase: ")
	if err != nil {
		return "", err
	}
	if !confirm {
		return passphrase, nil
	}

	again, err := read("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if err := crypto.CheckPassphrase(passphrase, again); err != nil {
		return "", err
	}
	return passphrase, nil
}
