package cli

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/shopsync/internal/records"
)

// A form asks for every field of P, offering cur's values as defaults.
type form[P records.Payload] func(r *bufio.Reader, w io.Writer, cur P) (P, error)

var today = func() string { return time.Now().Format(records.DateLayout) }

func transactionForm(r *bufio.Reader, w io.Writer, cur records.Transaction) (records.Transaction, error) {
	var (
		out records.Transaction
		err error
	)
	if cur.Type == "" {
		cur.Type = records.TransactionExpense
	}
	if cur.Date == "" {
		cur.Date = today()
	}

	if out.Type, err = GetTextOr(r, "Type (income|expense)", cur.Type, w); err != nil {
		return out, err
	}
	if out.Amount, err = GetFloatOr(r, "Amount", cur.Amount, w); err != nil {
		return out, err
	}
	if out.Category, err = GetTextOr(r, "Category", cur.Category, w); err != nil {
		return out, err
	}
	if out.Description, err = GetTextOr(r, "Description", cur.Description, w); err != nil {
		return out, err
	}
	if out.Date, err = GetTextOr(r, "Date (YYYY-MM-DD)", cur.Date, w); err != nil {
		return out, err
	}
	return out, nil
}

func productForm(r *bufio.Reader, w io.Writer, cur records.Product) (records.Product, error) {
	var (
		out records.Product
		err error
	)
	if out.Name, err = GetTextOr(r, "Name", cur.Name, w); err != nil {
		return out, err
	}
	if out.Stock, err = GetIntOr(r, "Stock", cur.Stock, w); err != nil {
		return out, err
	}
	if out.Price, err = GetFloatOr(r, "Price", cur.Price, w); err != nil {
		return out, err
	}
	if out.Unit, err = GetTextOr(r, "Unit", cur.Unit, w); err != nil {
		return out, err
	}
	return out, nil
}

func serviceForm(r *bufio.Reader, w io.Writer, cur records.Service) (records.Service, error) {
	var (
		out records.Service
		err error
	)
	if out.Name, err = GetTextOr(r, "Name", cur.Name, w); err != nil {
		return out, err
	}
	if out.Price, err = GetFloatOr(r, "Price", cur.Price, w); err != nil {
		return out, err
	}
	if out.Unit, err = GetTextOr(r, "Unit", cur.Unit, w); err != nil {
		return out, err
	}
	return out, nil
}

func syncMark(s records.SyncState) string {
	if s == records.Synced {
		return " "
	}
	return "*"
}

func formatTransaction(r records.Record[records.Transaction]) string {
	sign := "+"
	if r.Payload.Type == records.TransactionExpense {
		sign = "-"
	}
	return fmt.Sprintf("%s %4d  %s  %s%.2f  %s  %s", syncMark(r.SyncState), r.LocalID,
		r.Payload.Date, sign, r.Payload.Amount, r.Payload.Category, r.Payload.Description)
}

func formatProduct(r records.Record[records.Product]) string {
	return fmt.Sprintf("%s %4d  %s  %d %s  @ %.2f", syncMark(r.SyncState), r.LocalID,
		r.Payload.Name, r.Payload.Stock, r.Payload.Unit, r.Payload.Price)
}

func formatService(r records.Record[records.Service]) string {
	return fmt.Sprintf("%s %4d  %s  %.2f / %s", syncMark(r.SyncState), r.LocalID,
		r.Payload.Name, r.Payload.Price, r.Payload.Unit)
}
