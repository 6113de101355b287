package localrecords

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/dbx"
	"github.com/dmitrijs2005/shopsync/internal/records"
)

type SQLiteRepository[P records.Payload] struct {
	db    dbx.DBTX
	table string
}

func NewSQLiteRepository[P records.Payload](db dbx.DBTX) *SQLiteRepository[P] {
	return &SQLiteRepository[P]{db: db, table: records.KindOf[P]().Table()}
}

const columns = `local_id, server_id, owner_id, payload, last_modified_at, tombstoned, sync_state`

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord[P records.Payload](s scanner) (records.Record[P], error) {
	var (
		r        records.Record[P]
		serverID sql.NullInt64
		payload  []byte
		state    int
	)
	if err := s.Scan(&r.LocalID, &serverID, &r.OwnerID, &payload, &r.LastModifiedAt, &r.Tombstoned, &state); err != nil {
		return r, err
	}
	p, err := records.DecodePayload[P](payload)
	if err != nil {
		return r, err
	}
	r.ServerID = serverID.Int64
	r.Payload = p
	r.SyncState = records.SyncState(state)
	return r, nil
}

func nullServerID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func (r *SQLiteRepository[P]) queryOne(ctx context.Context, query string, args ...any) (*records.Record[P], error) {
	rec, err := scanRecord[P](r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("failed to get %s row: %w", r.table, err)
	}
	return &rec, nil
}

func (r *SQLiteRepository[P]) queryMany(ctx context.Context, query string, args ...any) ([]records.Record[P], error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", r.table, err)
	}
	defer rows.Close()

	var out []records.Record[P]
	for rows.Next() {
		rec, err := scanRecord[P](rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", r.table, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", r.table, err)
	}
	return out, nil
}

func (r *SQLiteRepository[P]) List(ctx context.Context, owner string) ([]records.Record[P], error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = ? AND tombstoned = 0 ORDER BY local_id`, columns, r.table)
	return r.queryMany(ctx, query, owner)
}

func (r *SQLiteRepository[P]) Unsynced(ctx context.Context, owner string) ([]records.Record[P], error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = ? AND sync_state = ? ORDER BY local_id`, columns, r.table)
	return r.queryMany(ctx, query, owner, int(records.Unsynced))
}

func (r *SQLiteRepository[P]) CountUnsynced(ctx context.Context, owner string) (int, error) {
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE owner_id = ? AND sync_state = ?`, r.table)
	if err := r.db.QueryRowContext(ctx, query, owner, int(records.Unsynced)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", r.table, err)
	}
	return n, nil
}

func (r *SQLiteRepository[P]) Get(ctx context.Context, owner string, localID int64) (*records.Record[P], error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = ? AND local_id = ?`, columns, r.table)
	return r.queryOne(ctx, query, owner, localID)
}

func (r *SQLiteRepository[P]) FindByServerID(ctx context.Context, owner string, serverID int64) (*records.Record[P], error) {
	if serverID == 0 {
		return nil, common.ErrorNotFound
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE owner_id = ? AND server_id = ?`, columns, r.table)
	return r.queryOne(ctx, query, owner, serverID)
}

func (r *SQLiteRepository[P]) Insert(ctx context.Context, rec records.Record[P]) (int64, error) {
	payload, err := records.EncodePayload(rec.Payload)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (server_id, owner_id, payload, last_modified_at, tombstoned, sync_state)
		VALUES (?, ?, ?, ?, ?, ?)`, r.table)

	res, err := r.db.ExecContext(ctx, query,
		nullServerID(rec.ServerID), rec.OwnerID, string(payload), rec.LastModifiedAt, rec.Tombstoned, int(rec.SyncState))
	if err != nil {
		return 0, fmt.Errorf("failed to insert %s row: %w", r.table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read %s local id: %w", r.table, err)
	}
	return id, nil
}

func (r *SQLiteRepository[P]) Update(ctx context.Context, rec records.Record[P]) error {
	payload, err := records.EncodePayload(rec.Payload)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		UPDATE %s
		SET server_id = ?, payload = ?, last_modified_at = ?, tombstoned = ?, sync_state = ?
		WHERE owner_id = ? AND local_id = ?`, r.table)

	res, err := r.db.ExecContext(ctx, query,
		nullServerID(rec.ServerID), string(payload), rec.LastModifiedAt, rec.Tombstoned, int(rec.SyncState),
		rec.OwnerID, rec.LocalID)
	if err != nil {
		return fmt.Errorf("failed to update %s row: %w", r.table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s row: %w", r.table, err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *SQLiteRepository[P]) Delete(ctx context.Context, owner string, localID int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE owner_id = ? AND local_id = ?`, r.table)
	if _, err := r.db.ExecContext(ctx, query, owner, localID); err != nil {
		return fmt.Errorf("failed to delete %s row: %w", r.table, err)
	}
	return nil
}
