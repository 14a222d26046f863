// Package cmd implements the todosync command line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"todosync/internal/accounts"
	"todosync/internal/cache"
	"todosync/internal/config"
	"todosync/internal/credentials"
	"todosync/internal/engine"
	"todosync/internal/utils"
	"todosync/provider"
	_ "todosync/provider/todoist"
)

// Version is set at build time
var Version = "dev"

// Config holds CLI configuration
type Config struct {
	ConfigPath string // Path to config file (for testing)
	Verbose    bool
	Stdin      io.Reader // Override for testing; defaults to os.Stdin
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	rootCmd := NewTodoSync(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(stderr, "Error:", err)
		return 1
	}
	return 0
}

// NewTodoSync creates the root command with injectable IO
func NewTodoSync(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Stdin == nil {
		cfg.Stdin = os.Stdin
	}

	cmd := &cobra.Command{
		Use:           "todosync",
		Short:         "Sync task accounts with remote to-do services",
		Long:          "todosync maintains linked service accounts and reconciles their task lists against the remote API.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			utils.SetVerboseMode(verbose || cfg.Verbose)
		},
	}

	cmd.PersistentFlags().Bool("verbose", false, "Enable verbose output")
	cmd.PersistentFlags().String("config", "", "Path to config file")

	cmd.AddCommand(newAccountsCmd(stdout, stderr, cfg))
	cmd.AddCommand(newLoginCmd(stdout, stderr, cfg))
	cmd.AddCommand(newSyncCmd(stdout, stderr, cfg))
	cmd.AddCommand(newStatusCmd(stdout, cfg))

	return cmd
}

// runtime bundles the wired-up engine for one command invocation.
type runtime struct {
	cfg    *config.Config
	engine *engine.Engine
	creds  *credentials.Manager
}

// setup loads the config and wires the directory, credential manager, cache
// and engine.
func setup(cmd *cobra.Command, cliCfg *Config, authorizer credentials.Authorizer) (*runtime, error) {
	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = cliCfg.ConfigPath
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var managerOpts []credentials.ManagerOption
	if authorizer != nil && cfg.OAuth.ClientID != "" {
		flow := credentials.NewFlow(credentials.FlowConfig{
			ClientID:         cfg.OAuth.ClientID,
			ClientSecret:     cfg.OAuth.ClientSecret,
			AuthURL:          cfg.OAuth.AuthURL,
			TokenURL:         cfg.OAuth.TokenURL,
			AuthorizeTimeout: cfg.GetAuthorizeTimeout(),
		}, authorizer)
		managerOpts = append(managerOpts, credentials.WithFlow(flow))
	}
	creds := credentials.NewManager(managerOpts...)

	dir := accounts.NewDirectory(accounts.NewStore(cfg.AccountsPath))

	engineOpts := []engine.Option{
		engine.WithTimeout(cfg.GetHTTPTimeout()),
		engine.WithBaseURL(cfg.APIBaseURL),
	}
	if store, err := cache.Open(cfg.CachePath); err == nil {
		engineOpts = append(engineOpts, engine.WithCache(store))
	} else {
		utils.Warnf("snapshot cache unavailable: %v", err)
	}

	return &runtime{
		cfg:    cfg,
		engine: engine.New(dir, creds, engineOpts...),
		creds:  creds,
	}, nil
}

func newAccountsCmd(stdout, stderr io.Writer, cliCfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage linked service accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, cliCfg, nil)
			if err != nil {
				return err
			}
			if err := rt.engine.Directory().Load(); err != nil {
				return err
			}
			printAccounts(stdout, rt.engine.Directory())
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List linked accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, cliCfg, nil)
			if err != nil {
				return err
			}
			if err := rt.engine.Directory().Load(); err != nil {
				return err
			}
			printAccounts(stdout, rt.engine.Directory())
			return nil
		},
	}

	var name, service string
	var active bool
	add := &cobra.Command{
		Use:   "add",
		Short: "Link a new account",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, cliCfg, nil)
			if err != nil {
				return err
			}
			dir := rt.engine.Directory()
			if err := dir.Load(); err != nil {
				return err
			}
			if service != "" && !provider.Known(service) {
				return utils.ErrUnknownService(service, serviceKinds())
			}
			account, err := dir.CreateAccount()
			if err != nil {
				return err
			}
			account.SetName(name)
			account.SetService(service)
			account.SetActive(active)
			_, _ = fmt.Fprintln(stdout, account.UID())
			return nil
		},
	}
	add.Flags().StringVar(&name, "name", "", "Display name of the account")
	add.Flags().StringVar(&service, "service", "", "Service kind (e.g. todoist)")
	add.Flags().BoolVar(&active, "active", true, "Whether the account syncs")

	remove := &cobra.Command{
		Use:   "remove <uid>",
		Short: "Delete a linked account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, cliCfg, nil)
			if err != nil {
				return err
			}
			if err := rt.engine.Directory().Load(); err != nil {
				return err
			}
			if err := rt.engine.RemoveAccount(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, accounts.ErrAccountNotFound) {
					return utils.ErrAccountNotFound(args[0])
				}
				return err
			}
			_, _ = fmt.Fprintln(stdout, "removed", args[0])
			return nil
		},
	}

	token := &cobra.Command{
		Use:   "token <uid>",
		Short: "Store an API token for an account manually",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, cliCfg, nil)
			if err != nil {
				return err
			}
			dir := rt.engine.Directory()
			if err := dir.Load(); err != nil {
				return err
			}
			account, err := dir.Account(args[0])
			if err != nil {
				return utils.ErrAccountNotFound(args[0])
			}
			secret, err := promptSecret(cliCfg.Stdin, stderr,
				fmt.Sprintf("Enter API token for %s (%s): ", account.Name(), account.Service()))
			if err != nil {
				return err
			}
			if err := rt.creds.Store(cmd.Context(), account.Service(), account.Name(), secret); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(stdout, "token stored")
			return nil
		},
	}

	cmd.AddCommand(list, add, remove, token)
	return cmd
}

func newLoginCmd(stdout, stderr io.Writer, cliCfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "login <uid>",
		Short: "Authorize an account and resolve its credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			authorizer := &promptAuthorizer{in: cliCfg.Stdin, out: stderr}
			rt, err := setup(cmd, cliCfg, authorizer)
			if err != nil {
				return err
			}
			dir := rt.engine.Directory()
			if err := dir.Load(); err != nil {
				return err
			}
			account, err := dir.Account(args[0])
			if err != nil {
				return utils.ErrAccountNotFound(args[0])
			}
			if err := rt.creds.Resolve(cmd.Context(), account.Service(), account.Name(), account.Credential()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(stdout, "account %s ready (credential from %s)\n",
				account.UID(), account.Credential().Source())
			return nil
		},
	}
}

func newSyncCmd(stdout, stderr io.Writer, cliCfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "sync <uid>",
		Short: "Import an account's lists and tasks from the remote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			authorizer := &promptAuthorizer{in: cliCfg.Stdin, out: stderr}
			rt, err := setup(cmd, cliCfg, authorizer)
			if err != nil {
				return err
			}
			dir := rt.engine.Directory()
			if err := dir.Load(); err != nil {
				return err
			}
			account, err := dir.Account(args[0])
			if err != nil {
				return utils.ErrAccountNotFound(args[0])
			}
			if err := rt.engine.BringUp(cmd.Context(), account); err != nil {
				return err
			}
			p, err := rt.engine.Provider(account.UID())
			if err != nil {
				return err
			}
			for _, list := range p.TaskLists() {
				_, _ = fmt.Fprintf(stdout, "%s\t%s\t%d tasks\n", list.ID, list.Name, len(p.Tasks(list.ID)))
			}
			return rt.engine.Deactivate()
		},
	}
}

func newStatusCmd(stdout io.Writer, cliCfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show per-account sync status",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd, cliCfg, nil)
			if err != nil {
				return err
			}
			if err := rt.engine.Directory().Load(); err != nil {
				return err
			}
			for uid, st := range rt.engine.Status() {
				line := fmt.Sprintf("%s\tready=%t syncs=%d errors=%d", uid, st.Ready, st.SyncCount, st.ErrorCount)
				if st.LastError != "" {
					line += "\tlast_error=" + st.LastError
				}
				_, _ = fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}
}

func printAccounts(stdout io.Writer, dir *accounts.Directory) {
	for _, a := range dir.Accounts() {
		service := a.Service()
		if service == "" {
			service = "-"
		}
		_, _ = fmt.Fprintf(stdout, "%s\t%s\t%s\tactive=%t ready=%t\n",
			a.UID(), a.Name(), service, a.Active(), a.Ready())
	}
}

func serviceKinds() []string {
	var kinds []string
	for _, info := range provider.Services() {
		kinds = append(kinds, info.Kind)
	}
	return kinds
}

// promptAuthorizer drives the authorization flow on a terminal: it prints
// the authorization URL and parses the callback URL the user pastes back.
type promptAuthorizer struct {
	in  io.Reader
	out io.Writer
}

func (p *promptAuthorizer) Authorize(ctx context.Context, authURL string) (string, string, error) {
	_, _ = fmt.Fprintf(p.out, "Open this URL in your browser and authorize access:\n%s\n", authURL)
	_, _ = fmt.Fprint(p.out, "Paste the full callback URL here: ")

	lineCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		line, err := readLine(p.in)
		if err != nil {
			errCh <- err
			return
		}
		lineCh <- line
	}()

	var line string
	select {
	case line = <-lineCh:
	case err := <-errCh:
		return "", "", fmt.Errorf("%w: %v", credentials.ErrCancelled, err)
	case <-ctx.Done():
		return "", "", ctx.Err()
	}

	parsed, err := url.Parse(strings.TrimSpace(line))
	if err != nil {
		return "", "", fmt.Errorf("invalid callback URL: %w", err)
	}
	query := parsed.Query()
	code := query.Get("code")
	if code == "" {
		return "", "", fmt.Errorf("callback URL carries no authorization code")
	}
	return code, query.Get("state"), nil
}

// promptSecret reads a secret with hidden input when stdin is a terminal,
// falling back to a plain line read otherwise (tests, pipes).
func promptSecret(in io.Reader, out io.Writer, prompt string) (string, error) {
	_, _ = fmt.Fprint(out, prompt)

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(out)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := readLine(in)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func readLine(in io.Reader) (string, error) {
	var line []byte
	buf := make([]byte, 1)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return string(line), nil
			}
			line = append(line, buf[0])
			continue
		}
		if err != nil {
			if err == io.EOF && len(line) > 0 {
				return string(line), nil
			}
			return "", err
		}
	}
}
