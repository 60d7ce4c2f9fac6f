package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/titpetric/hilink-cli/client"
	"github.com/titpetric/hilink-cli/config"
	"github.com/titpetric/hilink-cli/logger"
	"github.com/titpetric/hilink-cli/model"
	"github.com/titpetric/hilink-cli/storage"
	"github.com/titpetric/hilink-cli/storage/bolt"
	"github.com/titpetric/hilink-cli/storage/file"
)

// app carries state shared by all commands of one invocation.
type app struct {
	v          *viper.Viper
	configPath string
	cfg        *config.Config
	log        zerolog.Logger

	// prompt reads a password when --auth holds only a username.
	prompt func(username, host string) (string, error)
}

func newRootCmd() *cobra.Command {
	a := &app{
		v:      config.New(),
		log:    zerolog.Nop(),
		prompt: promptPassword,
	}

	cmd := &cobra.Command{
		Use:   "hilink-cli",
		Short: "Manage SMS on Huawei HiLink LTE routers",
		Long: `A CLI tool for the HiLink web API of Huawei LTE routers and USB modems.

The session is stored locally and reused until the device expires it.

Examples:
  hilink-cli login --auth admin:secret
  hilink-cli sms list --box inbox --json
  hilink-cli sms send --message "hello" +4915112345678
  hilink-cli logout`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "hilink.yaml", "config file")
	flags.String("host", "", "device address (default 192.168.8.1)")
	flags.String("auth", "", "credentials as username:password, or username to prompt")
	flags.String("store", "", "session store driver: file or bolt")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	for key, name := range map[string]string{
		"device.host":    "host",
		"device.auth":    "auth",
		"storage.driver": "store",
		"log.level":      "log-level",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(name))
	}

	cmd.AddCommand(a.newLoginCmd())
	cmd.AddCommand(a.newStatusCmd())
	cmd.AddCommand(a.newLogoutCmd())
	cmd.AddCommand(a.newSMSCmd())

	return cmd
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(cfg.Log.Level, cmd.ErrOrStderr())
	return nil
}

func (a *app) newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), false, func(ctx context.Context, c *client.Client, _ storage.Store) error {
				if err := c.Login(ctx); err != nil {
					return fmt.Errorf("login failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s\n", a.cfg.Device.Host)
				return nil
			})
		},
	}
}

func (a *app) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the stored session is still valid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), false, func(ctx context.Context, c *client.Client, _ storage.Store) error {
				status := "not logged in"
				if c.IsLoggedIn(ctx) {
					status = "logged in"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", a.cfg.Device.Host, status)
				return nil
			})
		},
	}
}

func (a *app) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withClient(cmd.Context(), false, func(ctx context.Context, c *client.Client, store storage.Store) error {
				c.Logout(ctx)
				if err := store.DeleteAuth(ctx, a.cfg.Device.Host); err != nil {
					return fmt.Errorf("failed to remove stored session: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Logged out of %s\n", a.cfg.Device.Host)
				return nil
			})
		},
	}
}

// withClient builds a client seeded from the store, keeps the store in
// sync with every session change and, if login is set, makes sure the
// session is authenticated before calling fn.
func (a *app) withClient(ctx context.Context, login bool, fn func(context.Context, *client.Client, storage.Store) error) error {
	store, err := a.openStore()
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	host := a.cfg.Device.Host
	stored, err := store.LoadAuth(ctx, host)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		a.log.Warn().Err(err).Str("host", host).Msg("ignoring stored session")
		stored = model.Auth{}
	}

	username, password, err := resolveAuth(a.cfg.Device.Auth, host, stored, a.prompt)
	if err != nil {
		return err
	}

	c, err := client.NewClient(&client.Options{
		Host:       host,
		Username:   username,
		Password:   password,
		HTTPClient: &http.Client{Timeout: a.cfg.Device.Timeout},
		Logger:     &a.log,
	})
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}

	if !stored.Empty() {
		stored.Host = host
		stored.Username = username
		stored.Password = password
		c.ImportAuth(stored)
	}

	c.OnAuthChange(func(auth model.Auth) {
		if err := store.SaveAuth(ctx, auth); err != nil {
			a.log.Warn().Err(err).Msg("failed to save session")
		}
	})

	if login && !c.IsLoggedIn(ctx) {
		a.log.Debug().Str("host", host).Msg("session expired, logging in")
		if err := c.Login(ctx); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
	}

	return fn(ctx, c, store)
}

func (a *app) openStore() (storage.Store, error) {
	path := a.cfg.Storage.Path
	switch strings.ToLower(a.cfg.Storage.Driver) {
	case "", "file":
		return file.New(path)
	case "bolt":
		return bolt.New(filepath.Join(path, "hilink.db"))
	}
	return nil, fmt.Errorf("unknown storage driver: %s", a.cfg.Storage.Driver)
}

// resolveAuth returns the credentials for host. A "username:password" pair
// is used as is. A bare username reuses the stored password for the same
// user, then asks prompt; without a prompt the username doubles as the
// password.
func resolveAuth(auth, host string, stored model.Auth, prompt func(username, host string) (string, error)) (string, string, error) {
	if username, password, ok := strings.Cut(auth, ":"); ok {
		return username, password, nil
	}
	if stored.Username == auth && stored.Password != "" {
		return auth, stored.Password, nil
	}
	if prompt == nil {
		return auth, auth, nil
	}
	password, err := prompt(auth, host)
	if err != nil {
		return "", "", err
	}
	return auth, password, nil
}

// promptPassword reads a password from the terminal. It returns the
// username when stdin is not a terminal.
func promptPassword(username, host string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return username, nil
	}

	fmt.Fprintf(os.Stderr, "Password for %s@%s: ", username, host)
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(password), nil
}
