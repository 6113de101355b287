package syncrecords

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/dbx"
	"github.com/dmitrijs2005/shopsync/internal/records"
)

// PostgresRepository stores records of payload type P in the table of its kind.
type PostgresRepository[P records.Payload] struct {
	db    dbx.DBTX
	table string
}

func NewPostgresRepository[P records.Payload](db dbx.DBTX) *PostgresRepository[P] {
	return &PostgresRepository[P]{db: db, table: records.KindOf[P]().Table()}
}

const columns = `id, owner_id, payload, last_modified_at, tombstoned`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord[P records.Payload](s scanner) (records.Record[P], error) {
	var (
		r       records.Record[P]
		payload []byte
	)
	if err := s.Scan(&r.ServerID, &r.OwnerID, &payload, &r.LastModifiedAt, &r.Tombstoned); err != nil {
		return r, err
	}
	p, err := records.DecodePayload[P](payload)
	if err != nil {
		return r, err
	}
	r.Payload = p
	r.SyncState = records.Synced
	return r, nil
}

func (r *PostgresRepository[P]) queryOne(ctx context.Context, query string, args ...any) (*records.Record[P], error) {
	rec, err := scanRecord[P](r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &rec, nil
}

func (r *PostgresRepository[P]) Get(ctx context.Context, owner string, id int64) (*records.Record[P], error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = $1 AND id = $2`, columns, r.table)
	return r.queryOne(ctx, query, owner, id)
}

func (r *PostgresRepository[P]) FindByOrigin(ctx context.Context, owner string, o Origin) (*records.Record[P], error) {
	if o.Device == "" {
		return nil, common.ErrorNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = $1 AND origin_device = $2 AND origin_local_id = $3`,
		columns, r.table)
	return r.queryOne(ctx, query, owner, o.Device, o.LocalID)
}

func (r *PostgresRepository[P]) Insert(ctx context.Context, rec records.Record[P], o Origin, changedAt int64) (int64, bool, error) {
	payload, err := records.EncodePayload(rec.Payload)
	if err != nil {
		return 0, false, err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (owner_id, payload, last_modified_at, tombstoned, origin_device, origin_local_id, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id, origin_device, origin_local_id) WHERE origin_device <> '' DO NOTHING
		RETURNING id
	`, r.table)

	var id int64
	err = r.db.QueryRowContext(ctx, query,
		rec.OwnerID, []byte(payload), rec.LastModifiedAt, rec.Tombstoned, o.Device, o.LocalID, changedAt).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("db error: %w", err)
	}
	return id, true, nil
}

func (r *PostgresRepository[P]) CompareAndUpdate(ctx context.Context, rec records.Record[P], expected, changedAt int64) (bool, error) {
	payload, err := records.EncodePayload(rec.Payload)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET payload = $1, last_modified_at = $2, tombstoned = FALSE, changed_at = $6
		WHERE owner_id = $3 AND id = $4 AND last_modified_at = $5
	`, r.table)
	res, err := r.db.ExecContext(ctx, query, []byte(payload), rec.LastModifiedAt, rec.OwnerID, rec.ServerID, expected, changedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return oneRow(res)
}

func (r *PostgresRepository[P]) CompareAndTombstone(ctx context.Context, owner string, id, lastModifiedAt, expected, changedAt int64) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET tombstoned = TRUE, last_modified_at = $1, changed_at = $5
		WHERE owner_id = $2 AND id = $3 AND last_modified_at = $4
	`, r.table)
	res, err := r.db.ExecContext(ctx, query, lastModifiedAt, owner, id, expected, changedAt)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return oneRow(res)
}

func oneRow(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("unexpected rows affected: %d", n)
	}
}

func (r *PostgresRepository[P]) ChangedSince(ctx context.Context, owner string, watermark *int64) ([]records.Record[P], error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE owner_id = $1 AND ($2::BIGINT IS NULL OR last_modified_at > $2 OR changed_at > $2)
		ORDER BY last_modified_at, id
	`, columns, r.table)

	var wm sql.NullInt64
	if watermark != nil {
		wm = sql.NullInt64{Int64: *watermark, Valid: true}
	}

	rows, err := r.db.QueryContext(ctx, query, owner, wm)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", r.table, err)
	}
	defer rows.Close()

	var result []records.Record[P]
	for rows.Next() {
		rec, err := scanRecord[P](rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
