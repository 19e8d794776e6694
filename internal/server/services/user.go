// Package services contains server-side business logic. UserService handles
// registration, login, token refresh, wrapped-key storage and the session
// list of each account.
package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/common"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
	"github.com/dmitrijs2005/gophnotes/internal/dbx"
	"github.com/dmitrijs2005/gophnotes/internal/server/auth"
	"github.com/dmitrijs2005/gophnotes/internal/server/config"
	"github.com/dmitrijs2005/gophnotes/internal/server/models"
	"github.com/dmitrijs2005/gophnotes/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// TokenPair bundles a short-lived access token and a long-lived refresh
// token, both bound to SessionID.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	SessionID    string
}

// SaltInfo is what a client needs to derive its login verifier.
type SaltInfo struct {
	KDFSalt   []byte
	KDFParams json.RawMessage
}

// SessionRevoker deletes sessions and tells the account's other devices.
// *notifier.Notifier implements it.
type SessionRevoker interface {
	NotifySessionsChanged(ctx context.Context, username string)
	RevokeSessionAndNotify(ctx context.Context, username, sessionID string) error
	RevokeOtherSessionsAndNotify(ctx context.Context, username, keepSessionID string) error
}

type UserService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	revoker                      SessionRevoker
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

// timeNow is a seam for session expiry tests.
var timeNow = time.Now

func NewUserService(db *sql.DB, m repomanager.RepositoryManager, revoker SessionRevoker, cfg *config.Config) *UserService {
	return &UserService{
		db:                           db,
		repomanager:                  m,
		revoker:                      revoker,
		jwtSecret:                    []byte(cfg.SecretKey),
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
	}
}

// Register creates the account and stores its wrapped data key in one
// transaction. A taken username yields common.ErrorAlreadyExists.
func (s *UserService) Register(ctx context.Context, username string, key *models.WrappedKey) (*models.User, error) {
	if username == "" || key == nil || len(key.Verifier) == 0 || len(key.KDFSalt) == 0 {
		return nil, common.ErrorValidation
	}

	return dbx.WithTxValue(ctx, s.db, func(ctx context.Context, tx dbx.DBTX) (*models.User, error) {
		u, err := s.repomanager.Users(tx).Create(ctx, &models.User{Username: username})
		if err != nil {
			return nil, fmt.Errorf("error creating user: %w", err)
		}
		key.UserID = u.ID
		if err := s.repomanager.WrappedKeys(tx).Upsert(ctx, key); err != nil {
			return nil, fmt.Errorf("error storing wrapped key: %w", err)
		}
		return u, nil
	})
}

// GetSalt returns the user's KDF salt and parameters. Unknown users get a
// stable salt derived from the username and the default parameters, so
// repeated probes look like a real account.
func (s *UserService) GetSalt(ctx context.Context, username string) (*SaltInfo, error) {
	key, err := s.wrappedKeyByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return s.decoySalt(username)
		}
		return nil, common.ErrorInternal
	}
	return &SaltInfo{KDFSalt: key.KDFSalt, KDFParams: key.KDFParams}, nil
}

// Login checks the verifier in constant time, opens a new session and
// returns its tokens.
func (s *UserService) Login(ctx context.Context, username string, verifierCandidate []byte, userAgent string) (*TokenPair, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	key, err := s.repomanager.WrappedKeys(s.db).Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, common.ErrorInternal
	}
	if !s.checkVerifier(key.Verifier, verifierCandidate) {
		return nil, common.ErrorUnauthorized
	}

	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	session := &models.Session{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		Token:     refresh,
		UserAgent: userAgent,
		ExpiresAt: timeNow().Add(s.refreshTokenValidityDuration),
	}
	if err := s.repomanager.Sessions(s.db).Create(ctx, session); err != nil {
		return nil, common.ErrorInternal
	}

	access, err := s.generateAccessToken(auth.Identity{UserID: user.ID, Username: user.Username, SessionID: session.ID})
	if err != nil {
		return nil, common.ErrorInternal
	}

	s.revoker.NotifySessionsChanged(ctx, user.Username)
	return &TokenPair{AccessToken: access, RefreshToken: refresh, SessionID: session.ID}, nil
}

// RefreshToken rotates the refresh token of its session and mints a new
// access token for the same session. Expired tokens yield
// common.ErrRefreshTokenExpired, unknown ones common.ErrorUnauthorized.
func (s *UserService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	sessions := s.repomanager.Sessions(s.db)

	session, err := sessions.FindByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}
	if session.ExpiresAt.Before(timeNow()) {
		return nil, common.ErrRefreshTokenExpired
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("error loading session owner: %w", err)
	}

	refresh, err := s.generateRefreshToken()
	if err != nil {
		return nil, common.ErrorInternal
	}
	if err := sessions.Rotate(ctx, session.ID, refresh, timeNow().Add(s.refreshTokenValidityDuration)); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error rotating refresh token: %w", err)
	}

	access, err := s.generateAccessToken(auth.Identity{UserID: user.ID, Username: user.Username, SessionID: session.ID})
	if err != nil {
		return nil, common.ErrorInternal
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, SessionID: session.ID}, nil
}

func (s *UserService) GetWrappedKey(ctx context.Context, userID string) (*models.WrappedKey, error) {
	return s.repomanager.WrappedKeys(s.db).Get(ctx, userID)
}

// UpdateWrappedKey replaces the wrapped key after a passphrase change. The
// caller proves knowledge of the old passphrase with oldVerifier. Every other
// session of the account is revoked afterwards.
func (s *UserService) UpdateWrappedKey(ctx context.Context, id auth.Identity, oldVerifier []byte, key *models.WrappedKey) error {
	if key == nil || len(key.Verifier) == 0 || len(key.KDFSalt) == 0 {
		return common.ErrorValidation
	}

	repo := s.repomanager.WrappedKeys(s.db)
	current, err := repo.Get(ctx, id.UserID)
	if err != nil {
		return fmt.Errorf("error loading wrapped key: %w", err)
	}
	if !s.checkVerifier(current.Verifier, oldVerifier) {
		return common.ErrorUnauthorized
	}

	key.UserID = id.UserID
	if err := repo.Upsert(ctx, key); err != nil {
		return fmt.Errorf("error storing wrapped key: %w", err)
	}
	return s.revoker.RevokeOtherSessionsAndNotify(ctx, id.Username, id.SessionID)
}

// CheckSession returns common.ErrSessionRevoked when the session behind an
// access token was revoked or has expired.
func (s *UserService) CheckSession(ctx context.Context, id auth.Identity) error {
	ok, err := s.repomanager.Sessions(s.db).Active(ctx, id.UserID, id.SessionID, timeNow())
	if err != nil {
		return fmt.Errorf("error checking session: %w", err)
	}
	if !ok {
		return common.ErrSessionRevoked
	}
	return nil
}

func (s *UserService) ListSessions(ctx context.Context, userID string) ([]models.Session, error) {
	return s.repomanager.Sessions(s.db).ListByUser(ctx, userID)
}

func (s *UserService) RevokeSession(ctx context.Context, id auth.Identity, sessionID string) error {
	return s.revoker.RevokeSessionAndNotify(ctx, id.Username, sessionID)
}

func (s *UserService) RevokeOtherSessions(ctx context.Context, id auth.Identity) error {
	return s.revoker.RevokeOtherSessionsAndNotify(ctx, id.Username, id.SessionID)
}

// Logout ends the caller's own session.
func (s *UserService) Logout(ctx context.Context, id auth.Identity) error {
	return s.revoker.RevokeSessionAndNotify(ctx, id.Username, id.SessionID)
}

func (s *UserService) wrappedKeyByUsername(ctx context.Context, username string) (*models.WrappedKey, error) {
	user, err := s.repomanager.Users(s.db).GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	return s.repomanager.WrappedKeys(s.db).Get(ctx, user.ID)
}

func (s *UserService) decoySalt(username string) (*SaltInfo, error) {
	params, err := json.Marshal(cryptox.DefaultKDFParams())
	if err != nil {
		return nil, common.ErrorInternal
	}
	mac := hmac.New(sha256.New, s.jwtSecret)
	mac.Write([]byte("decoy-salt:" + username))
	return &SaltInfo{KDFSalt: mac.Sum(nil)[:cryptox.SaltLen], KDFParams: params}, nil
}

func (s *UserService) generateAccessToken(id auth.Identity) (string, error) {
	return auth.GenerateToken(id, s.jwtSecret, s.accessTokenValidityDuration)
}

func (s *UserService) generateRefreshToken() (string, error) {
	return common.MakeRandHexString(32)
}

func (s *UserService) checkVerifier(verifier []byte, candidate []byte) bool {
	return subtle.ConstantTimeCompare(verifier, candidate) == 1
}
