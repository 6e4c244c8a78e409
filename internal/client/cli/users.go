package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/authkeeper/internal/client/client"
)

func (a *App) Me(ctx context.Context) error {
	msg, err := a.client.Me(ctx)
	if err != nil {
		a.report("Request failed", err)
		return err
	}
	a.printf("%s\n", msg)
	return nil
}

// Users calls /api/users/<scope>.
func (a *App) Users(ctx context.Context, scope string) error {
	switch s := client.Scope(scope); s {
	case client.ScopeMe, client.ScopeAdmin, client.ScopePublic:
		msg, err := a.client.Greeting(ctx, s)
		if err != nil {
			a.report("Request failed", err)
			return err
		}
		a.printf("%s\n", msg)
		return nil
	default:
		err := fmt.Errorf("unknown scope %q", scope)
		a.printf("Usage: users <me|admin|public>\n")
		return err
	}
}

func (a *App) getStatus() string {
	s := ""
	if a.userName != "" {
		s = a.userName + " "
	}
	if mode := a.currentMode(); mode != "" {
		s = s + string(mode)
	}
	if s != "" {
		s = fmt.Sprintf("(%s)", s)
	}
	return s
}
