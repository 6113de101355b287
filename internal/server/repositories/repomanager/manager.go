package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/shopsync/internal/dbx"
	"github.com/dmitrijs2005/shopsync/internal/records"
	"github.com/dmitrijs2005/shopsync/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/shopsync/internal/server/repositories/syncrecords"
	"github.com/dmitrijs2005/shopsync/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Transactions(db dbx.DBTX) syncrecords.Repository[records.Transaction]
	Products(db dbx.DBTX) syncrecords.Repository[records.Product]
	Services(db dbx.DBTX) syncrecords.Repository[records.Service]
}
