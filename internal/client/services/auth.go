// Package services contains application services for the shopsync client.
// This file defines the authentication service: online/offline login,
// register, session resume and housekeeping of the locally cached session.
package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/shopsync/internal/client/client"
	"github.com/dmitrijs2005/shopsync/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/shopsync/internal/dbx"
	"github.com/dmitrijs2005/shopsync/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	keyDeviceID     = "device_id"
	keyOwnerID      = "owner_id"
	keyUserName     = "username"
	keyRefreshToken = "refresh_token"
	keyVerifier     = "verifier"
)

// Identity is the signed-in user. UserID owns every local record.
type Identity struct {
	UserID   string
	UserName string
}

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - OnlineLogin: authenticate against the server and cache the session.
//   - OfflineLogin: verify credentials against the cached session only.
//   - Resume: continue the cached session without a password.
//   - ClearOfflineData: forget the cached session (logout).
//
// Local records are never removed here; they stay scoped to their owner.
type AuthService interface {
	Register(ctx context.Context, username string, password []byte) (string, error)
	OnlineLogin(ctx context.Context, username string, password []byte) (*Identity, error)
	OfflineLogin(ctx context.Context, username string, password []byte) (*Identity, error)
	Resume(ctx context.Context) (*Identity, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	ClearOfflineData(ctx context.Context) error
}

type authService struct {
	client   client.Client
	db       *sql.DB
	logger   logging.Logger
	hashCost int
}

// NewAuthService binds the service to an API client and the local database.
// Rotated refresh tokens are written back to the database as they arrive.
func NewAuthService(c client.Client, db *sql.DB, logger logging.Logger) AuthService {
	a := &authService{client: c, db: db, logger: logger.With("module", "auth"), hashCost: bcrypt.DefaultCost}
	c.OnTokensRefreshed(a.storeRefreshToken)
	return a
}

func (a *authService) repo(db dbx.DBTX) metadata.Repository {
	return metadata.NewSQLiteRepository(db)
}

func (a *authService) storeRefreshToken(token string) {
	ctx := context.Background()
	if err := a.repo(a.db).SetString(ctx, keyRefreshToken, token); err != nil {
		a.logger.Error(ctx, "failed to persist refresh token", "error", err)
	}
}

// DeviceID returns the id this installation pushes under, creating it on
// first use. It survives logout.
func DeviceID(ctx context.Context, repo metadata.Repository) (string, error) {
	id, ok, err := repo.GetString(ctx, keyDeviceID)
	if err != nil {
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := repo.SetString(ctx, keyDeviceID, id); err != nil {
		return "", err
	}
	return id, nil
}

func (a *authService) Register(ctx context.Context, username string, password []byte) (string, error) {
	return a.client.Register(ctx, username, password)
}

// OnlineLogin authenticates against the server and caches what offline
// login and resume need: owner, username, refresh token and a bcrypt
// verifier of the password.
func (a *authService) OnlineLogin(ctx context.Context, username string, password []byte) (*Identity, error) {
	sess, err := a.client.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login error: %w", err)
	}

	verifier, err := bcrypt.GenerateFromPassword(password, a.hashCost)
	if err != nil {
		return nil, fmt.Errorf("verifier error: %w", err)
	}

	err = dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := a.repo(tx)
		if err := repo.SetString(ctx, keyOwnerID, sess.UserID); err != nil {
			return err
		}
		if err := repo.SetString(ctx, keyUserName, username); err != nil {
			return err
		}
		if err := repo.SetString(ctx, keyRefreshToken, sess.RefreshToken); err != nil {
			return err
		}
		return repo.Set(ctx, keyVerifier, verifier)
	})
	if err != nil {
		return nil, fmt.Errorf("offline data saving error: %w", err)
	}

	return &Identity{UserID: sess.UserID, UserName: username}, nil
}

// OfflineLogin checks the password against the cached verifier. It returns
// client.ErrLocalDataNotAvailable when nobody has logged in online on this
// device, and client.ErrUnauthorized on a mismatch. The cached refresh
// token is installed so syncing can start once the server is reachable.
func (a *authService) OfflineLogin(ctx context.Context, username string, password []byte) (*Identity, error) {
	repo := a.repo(a.db)

	id, err := a.cached(ctx, repo)
	if err != nil {
		return nil, err
	}
	if id.UserName != username {
		return nil, client.ErrUnauthorized
	}

	verifier, err := repo.Get(ctx, keyVerifier)
	if err != nil {
		return nil, err
	}
	if verifier == nil {
		return nil, client.ErrLocalDataNotAvailable
	}
	if err := bcrypt.CompareHashAndPassword(verifier, password); err != nil {
		return nil, client.ErrUnauthorized
	}

	if err := a.resumeTokens(ctx, repo); err != nil {
		return nil, err
	}
	return id, nil
}

// Resume continues the cached session without asking for a password.
func (a *authService) Resume(ctx context.Context) (*Identity, error) {
	repo := a.repo(a.db)

	id, err := a.cached(ctx, repo)
	if err != nil {
		return nil, err
	}
	if err := a.resumeTokens(ctx, repo); err != nil {
		return nil, err
	}
	return id, nil
}

func (a *authService) cached(ctx context.Context, repo metadata.Repository) (*Identity, error) {
	owner, ok, err := repo.GetString(ctx, keyOwnerID)
	if err != nil {
		return nil, err
	}
	if !ok || owner == "" {
		return nil, client.ErrLocalDataNotAvailable
	}
	name, _, err := repo.GetString(ctx, keyUserName)
	if err != nil {
		return nil, err
	}
	return &Identity{UserID: owner, UserName: name}, nil
}

func (a *authService) resumeTokens(ctx context.Context, repo metadata.Repository) error {
	token, ok, err := repo.GetString(ctx, keyRefreshToken)
	if err != nil {
		return err
	}
	if !ok || token == "" {
		return client.ErrLocalDataNotAvailable
	}
	a.client.Resume(token)
	return nil
}

// Ping proxies a liveness check to the underlying client.
func (a *authService) Ping(ctx context.Context) error {
	return a.client.Ping(ctx)
}

func (a *authService) Close(ctx context.Context) error {
	return a.client.Close()
}

// ClearOfflineData forgets the cached session. The device id, watermarks
// and local records stay.
func (a *authService) ClearOfflineData(ctx context.Context) error {
	return dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := a.repo(tx)
		for _, k := range []string{keyOwnerID, keyUserName, keyRefreshToken, keyVerifier} {
			if err := repo.Delete(ctx, k); err != nil {
				return err
			}
		}
		return nil
	})
}
