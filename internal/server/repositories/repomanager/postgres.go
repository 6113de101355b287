// Package repomanager vends the PostgreSQL repositories and applies the
// embedded goose migrations.
package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/dbx"
	"github.com/dmitrijs2005/shopsync/internal/records"
	"github.com/dmitrijs2005/shopsync/internal/server/migrations"
	"github.com/dmitrijs2005/shopsync/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/shopsync/internal/server/repositories/syncrecords"
	"github.com/dmitrijs2005/shopsync/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) RefreshTokens(db dbx.DBTX) refreshtokens.Repository {
	return refreshtokens.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Transactions(db dbx.DBTX) syncrecords.Repository[records.Transaction] {
	return syncrecords.NewPostgresRepository[records.Transaction](db)
}

func (m *PostgresRepositoryManager) Products(db dbx.DBTX) syncrecords.Repository[records.Product] {
	return syncrecords.NewPostgresRepository[records.Product](db)
}

func (m *PostgresRepositoryManager) Services(db dbx.DBTX) syncrecords.Repository[records.Service] {
	return syncrecords.NewPostgresRepository[records.Service](db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	return gooseUpContext(ctx, db, ".")
}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}
