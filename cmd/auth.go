package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/anitrack/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthRegister creates a backend account. The password is prompted for when not given.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	email := cmd.String("email")
	username := cmd.String("username")
	if email == "" || username == "" {
		return fmt.Errorf("%w: --email and --username are required", shared.ErrMissingArgument)
	}

	password, err := r.password(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("registering account", "email", email, "username", username)
	if err := r.backend.Register(ctx, email, password, username); err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	return r.writePlain("✓ Account created for %s. Run `anitrack auth login` to sign in.\n", username)
}

// AuthLogin signs in and stores the session credential.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	email := cmd.String("email")
	if email == "" {
		return fmt.Errorf("%w: --email is required", shared.ErrMissingArgument)
	}

	password, err := r.password(cmd)
	if err != nil {
		return err
	}

	profile, err := r.backend.Login(ctx, email, password)
	if err != nil {
		return err
	}

	r.logger.Info("logged in", "username", profile.Username, "session", r.store.SessionID())
	return r.writePlain("✓ Welcome, %s\n", profile.Username)
}

// AuthLogout ends the session and drops everything scoped to it.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	ended, err := r.backend.Logout(ctx)
	if err != nil {
		return err
	}

	r.controller.Reset()
	r.searcher.Cancel()
	if r.searchCache != nil {
		if err := r.searchCache.Clear(ctx, ended.SessionID); err != nil {
			r.logger.Warn("failed to clear search cache", "session", ended.SessionID, "error", err)
		}
	}

	return r.writePlain("✓ Logged out %s\n", ended.Username)
}

// AuthStatus reports the stored credential. With --verify the profile endpoint is called.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	cred, ok := r.store.Credential()
	if !ok {
		return r.writePlain("✗ Not logged in\n")
	}

	r.writePlain("✓ Logged in as %s\n", cred.Username)
	r.writePlain("Session: %s\n", cred.SessionID)

	switch tok := cred.Token; {
	case tok.Expiry.IsZero():
		r.writePlain("Token: no expiry\n")
	case tok.Valid():
		r.writePlain("Token: valid until %s\n", tok.Expiry.Local().Format(time.RFC1123))
	default:
		r.writePlain("Token: expired at %s (refreshed on next request)\n", tok.Expiry.Local().Format(time.RFC1123))
	}
	if tok := cred.Token; tok.RefreshToken != "" {
		r.writePlain("Refresh token: present\n")
	}

	if !cmd.Bool("verify") {
		return nil
	}

	profile, err := r.backend.Profile(ctx)
	if err != nil {
		return err
	}
	return r.writePlain("Verified: %s <%s>\n", profile.Username, profile.Email)
}

// AuthRefresh exchanges the stored credential for a new one.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	if err := r.requireSession(); err != nil {
		return err
	}
	if err := r.backend.Client().Refresh(ctx); err != nil {
		return err
	}
	return r.writePlain("✓ Session refreshed\n")
}

func (r *Runner) password(cmd *cli.Command) (string, error) {
	if p := cmd.String("password"); p != "" {
		return p, nil
	}
	p, err := r.promptSecret("Password: ")
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", fmt.Errorf("%w: password is required", shared.ErrMissingArgument)
	}
	return p, nil
}
