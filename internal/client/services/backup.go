package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/gophnotes/internal/api"
	"github.com/dmitrijs2005/gophnotes/internal/board"
	"github.com/dmitrijs2005/gophnotes/internal/client/repositories/notes"
	"github.com/dmitrijs2005/gophnotes/internal/cryptox"
	"github.com/dmitrijs2005/gophnotes/internal/netx"
)

var (
	putPresigned = netx.PutPresigned
	getPresigned = netx.GetPresigned
)

// backupContents is sealed as a whole; notes inside stay individually
// encrypted as stored on the server.
type backupContents struct {
	Notes []api.Note  `json:"notes"`
	Board board.Order `json:"board"`
}

type backupFile struct {
	Version    int    `json:"version"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

const backupVersion = 1

// Backup uploads the cached notes and the board to object storage and
// returns the object key to restore from.
func (s *notebookService) Backup(ctx context.Context) (string, error) {
	s.mu.Lock()
	cached, err := notes.NewSQLiteRepository(s.db).List(ctx)
	order := s.order
	s.mu.Unlock()
	if err != nil {
		return "", err
	}

	contents := backupContents{Notes: make([]api.Note, 0, len(cached)), Board: order}
	for _, n := range cached {
		contents.Notes = append(contents.Notes, api.Note{
			ID:         n.ID,
			Ciphertext: n.Ciphertext,
			Nonce:      n.Nonce,
			CreatedAt:  n.CreatedAt,
			UpdatedAt:  n.UpdatedAt,
		})
	}

	var file backupFile
	err = s.withKey(ctx, func(dek []byte) error {
		ct, nonce, err := cryptox.EncryptPayload(contents, dek)
		if err != nil {
			return err
		}
		file = backupFile{Version: backupVersion, Nonce: nonce, Ciphertext: ct}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("seal backup: %w", err)
	}

	body, err := json.Marshal(file)
	if err != nil {
		return "", err
	}

	target, err := s.client.PresignBackup(ctx, "")
	if err != nil {
		return "", err
	}
	if err := putPresigned(ctx, target.URL, body); err != nil {
		return "", fmt.Errorf("upload backup: %w", err)
	}

	s.logger.Info(ctx, "backup uploaded", "key", target.Key, "notes", len(contents.Notes))
	return target.Key, nil
}

// Restore downloads the backup under key and saves every note in it back to
// the server. Notes not in the backup are left alone. History is reset since
// its snapshots no longer describe the server state.
func (s *notebookService) Restore(ctx context.Context, key string) error {
	source, err := s.client.PresignBackup(ctx, key)
	if err != nil {
		return err
	}
	body, err := getPresigned(ctx, source.URL)
	if err != nil {
		return fmt.Errorf("download backup: %w", err)
	}

	var file backupFile
	if err := json.Unmarshal(body, &file); err != nil {
		return fmt.Errorf("malformed backup: %w", err)
	}
	if file.Version != backupVersion {
		return fmt.Errorf("unsupported backup version %d", file.Version)
	}

	var contents backupContents
	err = s.withKey(ctx, func(dek []byte) error {
		return cryptox.DecryptPayload(file.Ciphertext, file.Nonce, dek, &contents)
	})
	if err != nil {
		return fmt.Errorf("open backup: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range contents.Notes {
		if _, err := s.client.SaveNote(ctx, n); err != nil {
			return fmt.Errorf("restore note %s: %w", n.ID, err)
		}
	}
	if _, err := s.client.SaveBoard(ctx, contents.Board); err != nil {
		return fmt.Errorf("restore board: %w", err)
	}

	if err := s.refresh(ctx); err != nil {
		return err
	}
	s.history.Reset()
	return nil
}
