package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/florianilch/signet/internal/app"
	"github.com/florianilch/signet/internal/auth"
	"github.com/florianilch/signet/internal/provider"
	"github.com/florianilch/signet/internal/tokencache"
)

func loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "sign in interactively and cache the credential",
		Action: withProvider(func(ctx context.Context, cmd *cli.Command, _ *app.Config, p *provider.Provider) error {
			if err := p.SignIn(ctx); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.Root().Writer, "signed in as %s\n", accountOrUnknown(p))
			return err
		}),
	}
}

func logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "sign out and remove the cached credential",
		Action: withProvider(func(ctx context.Context, cmd *cli.Command, _ *app.Config, p *provider.Provider) error {
			err := p.SignOut(ctx)
			if errors.Is(err, provider.ErrAlreadySignedOut) {
				_, err = fmt.Fprintln(cmd.Root().Writer, "not signed in")
				return err
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.Root().Writer, "signed out")
			return err
		}),
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show the sign-in state",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "refresh",
				Usage: "refresh an expired access token silently before reporting",
			},
		},
		Action: withProvider(func(ctx context.Context, cmd *cli.Command, _ *app.Config, p *provider.Provider) error {
			if cmd.Bool("refresh") && p.State() != auth.StateSignedIn {
				if _, err := p.TrySilentSignIn(ctx); err != nil {
					return err
				}
			}

			w := cmd.Root().Writer
			if _, err := fmt.Fprintf(w, "state:   %s\n", p.State()); err != nil {
				return err
			}
			if account := p.Account(); account != "" {
				if _, err := fmt.Fprintf(w, "account: %s\n", account); err != nil {
					return err
				}
			}
			_, err := fmt.Fprintf(w, "scopes:  %s\n", p.Scopes())
			return err
		}),
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "print a valid access token, refreshing silently if needed",
		Action: withProvider(func(ctx context.Context, cmd *cli.Command, _ *app.Config, p *provider.Provider) error {
			if p.State() != auth.StateSignedIn {
				ok, err := p.TrySilentSignIn(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: run `signet login`", provider.ErrReauthenticationRequired)
				}
			}

			cred, err := p.Token(ctx)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.Root().Writer, cred.AccessToken)
			return err
		}),
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "import a refresh token obtained elsewhere and sign in silently",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, shutdown, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			defer shutdown()

			handle, err := readSecret(cmd.Root().Reader, cmd.Root().ErrWriter, "refresh token: ")
			if err != nil {
				return fmt.Errorf("reading refresh token: %w", err)
			}
			if handle == "" {
				return errors.New("refresh token must not be empty")
			}

			cache, err := app.NewCache(cfg)
			if err != nil {
				return err
			}
			scopes := cfg.Auth.ScopeSet()
			record := tokencache.NewRecord(&auth.Credential{RefreshHandle: handle, Scopes: scopes}, scopes, time.Now())
			if err := cache.Save(ctx, record); err != nil {
				return fmt.Errorf("saving refresh token: %w", err)
			}

			p, err := app.NewProvider(cfg)
			if err != nil {
				return err
			}
			ok, err := p.TrySilentSignIn(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%w: the imported refresh token was rejected", provider.ErrSignInFailed)
			}
			_, err = fmt.Fprintf(cmd.Root().Writer, "signed in as %s\n", accountOrUnknown(p))
			return err
		},
	}
}

// withProvider loads the configuration, creates the provider and restores
// its cached credential before running fn.
func withProvider(fn func(context.Context, *cli.Command, *app.Config, *provider.Provider) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, shutdown, err := setup(ctx, cmd)
		if err != nil {
			return err
		}
		defer shutdown()

		p, err := app.NewProvider(cfg)
		if err != nil {
			return err
		}
		if err := p.Initialize(ctx); err != nil {
			return err
		}
		return fn(ctx, cmd, cfg, p)
	}
}

// readSecret reads a single line from r. Terminal input is not echoed.
func readSecret(r io.Reader, prompt io.Writer, label string) (string, error) {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprint(prompt, label)
		secret, err := term.ReadPassword(int(f.Fd()))
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(secret)), nil
	}

	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func accountOrUnknown(p *provider.Provider) string {
	if account := p.Account(); account != "" {
		return account
	}
	return "unknown account"
}
