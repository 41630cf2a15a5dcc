package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/snaptrack/snaptrack/internal/client/session"
)

// getSimpleText and getSecret are indirections used to facilitate testing.
// They point to interactive input helpers and can be swapped in tests.
var getSimpleText = GetSimpleText
var getSecret = GetSecret

// unlock asks for the PIN and restores the saved session, if any.
func (a *App) unlock(ctx context.Context) error {
	pin, err := getSecret("PIN", a.out)
	if err != nil {
		return err
	}
	defer wipe(pin)

	if err := a.session.Unlock(ctx, pin); err != nil {
		return err
	}
	ok, err := a.session.Restore(ctx)
	if err != nil {
		return err
	}
	if ok {
		fmt.Fprintln(a.out, "Session restored.")
	} else {
		fmt.Fprintln(a.out, "Not signed in. Use 'login'.")
	}
	return nil
}

// Login prompts for an access token and an optional refresh token and saves
// them sealed under the PIN entered at startup.
func (a *App) Login(ctx context.Context) error {
	access, err := getSecret("Access token", a.out)
	if err != nil {
		return err
	}
	defer wipe(access)
	refresh, err := getSecret("Refresh token (optional)", a.out)
	if err != nil {
		return err
	}
	defer wipe(refresh)

	t := session.Tokens{
		AccessToken:  strings.TrimSpace(string(access)),
		RefreshToken: strings.TrimSpace(string(refresh)),
	}
	err = a.session.Login(ctx, t)
	if errors.Is(err, session.ErrLocked) {
		if err = a.unlockOnly(ctx); err == nil {
			err = a.session.Login(ctx, t)
		}
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "Signed in.")
	if a.isOnline() {
		return a.Sync(ctx)
	}
	return nil
}

func (a *App) unlockOnly(ctx context.Context) error {
	pin, err := getSecret("PIN", a.out)
	if err != nil {
		return err
	}
	defer wipe(pin)
	return a.session.Unlock(ctx, pin)
}

// Logout forgets the saved tokens. Queued uploads are kept.
func (a *App) Logout(ctx context.Context) error {
	if err := a.session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}
