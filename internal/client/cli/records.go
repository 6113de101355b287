package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/client/localstore"
	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/records"
)

var errNotLoggedIn = errors.New("please log in first")

func (a *App) Add(ctx context.Context, kind records.Kind) error {
	switch kind {
	case records.KindTransaction:
		return addRecord(ctx, a, a.transactions, transactionForm)
	case records.KindProduct:
		return addRecord(ctx, a, a.products, productForm)
	case records.KindService:
		return addRecord(ctx, a, a.catalog, serviceForm)
	}
	return common.ErrUnknownKind
}

func (a *App) Edit(ctx context.Context, kind records.Kind, localID int64) error {
	switch kind {
	case records.KindTransaction:
		return editRecord(ctx, a, a.transactions, transactionForm, localID)
	case records.KindProduct:
		return editRecord(ctx, a, a.products, productForm, localID)
	case records.KindService:
		return editRecord(ctx, a, a.catalog, serviceForm, localID)
	}
	return common.ErrUnknownKind
}

func (a *App) Delete(ctx context.Context, kind records.Kind, localID int64) error {
	switch kind {
	case records.KindTransaction:
		return deleteRecord(ctx, a, a.transactions, localID)
	case records.KindProduct:
		return deleteRecord(ctx, a, a.products, localID)
	case records.KindService:
		return deleteRecord(ctx, a, a.catalog, localID)
	}
	return common.ErrUnknownKind
}

func (a *App) List(ctx context.Context, kind records.Kind) error {
	switch kind {
	case records.KindTransaction:
		return listRecords(ctx, a, a.transactions, formatTransaction)
	case records.KindProduct:
		return listRecords(ctx, a, a.products, formatProduct)
	case records.KindService:
		return listRecords(ctx, a, a.catalog, formatService)
	}
	return common.ErrUnknownKind
}

func addRecord[P records.Payload](ctx context.Context, a *App, store *localstore.Store[P], f form[P]) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	var zero P
	p, err := f(a.reader, a.out, zero)
	if err != nil {
		return err
	}
	rec, err := store.Create(ctx, a.owner(), p)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s %d\n", store.Kind(), rec.LocalID)
	return nil
}

func editRecord[P records.Payload](ctx context.Context, a *App, store *localstore.Store[P], f form[P], localID int64) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	cur, err := store.Get(ctx, a.owner(), localID)
	if err != nil {
		return notFound(store.Kind(), localID, err)
	}
	p, err := f(a.reader, a.out, cur.Payload)
	if err != nil {
		return err
	}
	cur.Payload = p
	if _, err := store.UpsertLocal(ctx, *cur); err != nil {
		return notFound(store.Kind(), localID, err)
	}
	fmt.Fprintf(a.out, "Updated %s %d\n", store.Kind(), localID)
	return nil
}

func deleteRecord[P records.Payload](ctx context.Context, a *App, store *localstore.Store[P], localID int64) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	if _, err := store.Get(ctx, a.owner(), localID); err != nil {
		return notFound(store.Kind(), localID, err)
	}
	if err := store.SoftDeleteLocal(ctx, a.owner(), localID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s %d\n", store.Kind(), localID)
	return nil
}

func listRecords[P records.Payload](ctx context.Context, a *App, store *localstore.Store[P], format func(records.Record[P]) string) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	list, err := store.List(ctx, a.owner())
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintf(a.out, "No %s yet\n", store.Kind().Table())
		return nil
	}
	for _, r := range list {
		fmt.Fprintln(a.out, format(r))
	}
	return nil
}

func notFound(kind records.Kind, id int64, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return fmt.Errorf("%s %d not found", kind, id)
	}
	return err
}
