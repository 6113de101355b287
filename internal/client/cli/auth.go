package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/client/client"
	"github.com/dmitrijs2005/shopsync/internal/common"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

// Register prompts for a username and password and creates the account.
// The password byte slice is wiped before returning.
func (a *App) Register(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	id, err := a.authService.Register(ctx, userName, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered %s (%s), you can log in now\n", userName, id)
	return nil
}

// Login tries the server first and falls back to the cached session when
// the server is unreachable. Either way the background sync starts.
func (a *App) Login(ctx context.Context) error {
	userName, err := getSimpleText(a.reader, "Enter username", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	id, err := a.authService.OnlineLogin(ctx, userName, password)
	if errors.Is(err, client.ErrUnavailable) {
		fmt.Fprintln(a.out, "Server unavailable, trying offline login...")
		id, err = a.authService.OfflineLogin(ctx, userName, password)
	}
	if err != nil {
		return fmt.Errorf("login unsuccessful: %w", err)
	}

	a.identity = id
	fmt.Fprintf(a.out, "Logged in as %s\n", id.UserName)
	a.startSync(ctx)
	return nil
}

// resume picks up the session cached by an earlier login, if any.
func (a *App) resume(ctx context.Context) bool {
	id, err := a.authService.Resume(ctx)
	if err != nil {
		if !errors.Is(err, client.ErrLocalDataNotAvailable) {
			a.logger.Warn(ctx, "failed to resume session", "error", err)
		}
		return false
	}

	a.identity = id
	fmt.Fprintf(a.out, "Welcome back, %s\n", id.UserName)
	a.startSync(ctx)
	return true
}

// Logout stops background sync and forgets the cached session. Local
// records stay on disk for the next login of the same user.
func (a *App) Logout(ctx context.Context) error {
	a.haltSync()
	if err := a.authService.ClearOfflineData(ctx); err != nil {
		return err
	}
	a.identity = nil
	fmt.Fprintln(a.out, "Logged out")
	return nil
}
