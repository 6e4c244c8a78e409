package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// getSimpleText and getPassword are swapped in tests.
var getSimpleText = GetSimpleText
var getPassword = GetPassword

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// readCredentials prompts for an email and a password. The caller wipes
// the password.
func (a *App) readCredentials() (string, []byte, error) {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return "", nil, err
	}
	password, err := getPassword(a.out)
	if err != nil {
		return "", nil, err
	}
	return email, password, nil
}

// Register prompts for credentials and creates an account.
func (a *App) Register(ctx context.Context) error {
	email, password, err := a.readCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.client.Register(ctx, email, password)
	if err != nil {
		a.report("Registration failed", err)
		return err
	}

	a.printf("Registered %s (id=%s, role=%s)\n", u.Email, u.ID, u.Role)
	return nil
}

// Login prompts for credentials and keeps the issued tokens.
func (a *App) Login(ctx context.Context) error {
	email, password, err := a.readCredentials()
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.client.Login(ctx, email, password); err != nil {
		a.report("Login unsuccessful", err)
		return err
	}

	a.userName = email
	a.setMode(ModeOnline)
	a.printf("Login successful\n")
	return nil
}

func (a *App) Refresh(ctx context.Context) error {
	if err := a.client.Refresh(ctx); err != nil {
		a.report("Refresh failed", err)
		return err
	}
	a.printf("Access token refreshed\n")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	a.client.Logout()
	a.userName = ""
	a.printf("Logged out\n")
	return nil
}

func (a *App) report(what string, err error) {
	switch {
	case errors.Is(err, client.ErrUnavailable):
		a.setMode(ModeOffline)
		a.printf("%s: server unavailable\n", what)
	case errors.Is(err, client.ErrUnauthorized):
		a.printf("%s: %v. Please log in again.\n", what, err)
	default:
		a.printf("%s: %v\n", what, err)
	}
}
