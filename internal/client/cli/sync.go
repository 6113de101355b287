package cli

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/records"
)

// Sync runs one pass right away instead of waiting for the scheduler.
func (a *App) Sync(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	outcomes, err := a.syncer.RunOnce(ctx, a.owner())
	for _, o := range outcomes {
		verb := "pulled"
		if o.Pushed {
			verb = "pushed"
		}
		fmt.Fprintf(a.out, "%-12s %s: %d new, %d updated, %d deleted\n",
			o.Kind.Table(), verb, o.Result.Inserted, o.Result.Updated, o.Result.Deleted)
	}
	return err
}

func (a *App) Status(ctx context.Context) error {
	if !a.isLoggedIn() {
		fmt.Fprintf(a.out, "Not logged in (%s)\n", a.mode())
		return nil
	}
	pending, err := a.syncer.Pending(ctx, a.owner())
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "User:      %s\n", a.identity.UserName)
	fmt.Fprintf(a.out, "Mode:      %s\n", a.mode())
	if last := a.syncer.LastSync(); last.IsZero() {
		fmt.Fprintln(a.out, "Last sync: never")
	} else {
		fmt.Fprintf(a.out, "Last sync: %s\n", last.Format("2006-01-02 15:04:05"))
	}
	for _, k := range records.Kinds() {
		fmt.Fprintf(a.out, "Unsynced %s: %d\n", k.Table(), pending[k])
	}
	return nil
}
