// Package api defines the request and response messages of the Notes gRPC
// service and its service descriptor. Messages travel as JSON (see grpcx).
package api

import (
	"time"

	"github.com/dmitrijs2005/gophnotes/internal/board"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
	"github.com/dmitrijs2005/gophnotes/internal/notifier"
	"github.com/dmitrijs2005/gophnotes/internal/ticker"
)

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type RegisterRequest struct {
	Username   string              `json:"username"`
	WrappedDEK *cryptox.WrappedDEK `json:"wrapped_dek"`
	Verifier   []byte              `json:"verifier"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type GetSaltRequest struct {
	Username string `json:"username"`
}

type GetSaltResponse struct {
	KDFSalt   []byte            `json:"kdf_salt"`
	KDFParams cryptox.KDFParams `json:"kdf_params"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Verifier []byte `json:"verifier"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	SessionID    string `json:"session_id"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type GetWrappedKeyRequest struct{}

type GetWrappedKeyResponse struct {
	WrappedDEK *cryptox.WrappedDEK `json:"wrapped_dek"`
}

// UpdateWrappedKeyRequest replaces the wrapped key after a passphrase
// change. OldVerifier proves the caller knew the previous passphrase.
type UpdateWrappedKeyRequest struct {
	OldVerifier []byte              `json:"old_verifier"`
	Verifier    []byte              `json:"verifier"`
	WrappedDEK  *cryptox.WrappedDEK `json:"wrapped_dek"`
}

type UpdateWrappedKeyResponse struct{}

// Note is an encrypted note. Ciphertext opens under the account's DEK.
type Note struct {
	ID         string    `json:"id"`
	Ciphertext []byte    `json:"ciphertext"`
	Nonce      []byte    `json:"nonce"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type SaveNoteRequest struct {
	Note Note `json:"note"`
}

type SaveNoteResponse struct {
	EventID string `json:"event_id"`
	Note    Note   `json:"note"`
}

type DeleteNoteRequest struct {
	ID string `json:"id"`
}

type DeleteNoteResponse struct {
	EventID string `json:"event_id"`
}

type ListNotesRequest struct{}

type ListNotesResponse struct {
	Notes         []Note `json:"notes"`
	LatestEventID string `json:"latest_event_id"`
}

type GetBoardRequest struct{}

type GetBoardResponse struct {
	Order board.Order `json:"order"`
}

type SaveBoardRequest struct {
	Order board.Order `json:"order"`
}

type SaveBoardResponse struct {
	Order   board.Order `json:"order"`
	EventID string      `json:"event_id"`
}

// PollRequest asks for one ticker decision. LastSeenID "" means the client
// has not seen any event yet.
type PollRequest struct {
	LastSeenID string `json:"last_seen_id"`
}

type PollResponse struct {
	Payload ticker.Payload `json:"payload"`
}

type Session struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Current   bool      `json:"current"`
}

type ListSessionsRequest struct{}

type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

type RevokeSessionRequest struct {
	SessionID string `json:"session_id"`
}

type RevokeSessionResponse struct{}

type RevokeOtherSessionsRequest struct{}

type RevokeOtherSessionsResponse struct{}

type LogoutRequest struct{}

type LogoutResponse struct{}

// PresignBackupRequest asks for an upload URL when Key is empty and for a
// download URL of Key otherwise.
type PresignBackupRequest struct {
	Key string `json:"key,omitempty"`
}

type PresignBackupResponse struct {
	Key    string `json:"key"`
	URL    string `json:"url"`
	Method string `json:"method"`
}

type WatchRequest struct {
	LastSeenID string `json:"last_seen_id"`
}

// WatchEvent carries either a ticker payload or an account event.
type WatchEvent struct {
	Ticker  *ticker.Payload `json:"ticker,omitempty"`
	Account *notifier.Event `json:"account,omitempty"`
}
