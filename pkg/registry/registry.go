// Package registry persists the voice-session ↔ text-channel bindings
// that message routing consults. Rows never outlive the process: the
// table is purged at startup because in-memory sessions do not survive
// a restart.
package registry

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/midorin-Linux/discord-parrot/pkg/logger"
	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite database at path and ensures the
// binding table exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	logger.InfoCF("registry", "Registry database opened", map[string]any{
		"path": path,
	})
	return s, nil
}

func (s *Store) init() error {
	// The unique indexes keep at most one binding per voice channel and
	// per text channel; INSERT OR REPLACE evicts any conflicting row.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sub_channel (
			guild_id TEXT PRIMARY KEY,
			voice_channel_id TEXT NOT NULL,
			text_channel_id TEXT NOT NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sub_channel_voice ON sub_channel (voice_channel_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_sub_channel_text ON sub_channel (text_channel_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create registry schema: %w", err)
		}
	}
	return nil
}

// Bind upserts the binding for a guild.
func (s *Store) Bind(ctx context.Context, guildID, voiceChannelID, textChannelID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO sub_channel (guild_id, voice_channel_id, text_channel_id) VALUES (?, ?, ?)",
		guildID, voiceChannelID, textChannelID)
	if err != nil {
		return fmt.Errorf("failed to record binding: %w", err)
	}
	return nil
}

// Unbind removes the guild's binding. channelID may be either side of
// the binding, so a disconnect can be issued from the voice channel or
// the text channel.
func (s *Store) Unbind(ctx context.Context, guildID, channelID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM sub_channel WHERE guild_id = ? AND (voice_channel_id = ? OR text_channel_id = ?)",
		guildID, channelID, channelID)
	if err != nil {
		return fmt.Errorf("failed to remove binding: %w", err)
	}
	return nil
}

// IsBound reports whether channelID appears in any binding, as either
// the voice channel or the text channel.
func (s *Store) IsBound(ctx context.Context, channelID string) (bool, error) {
	var bound bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM sub_channel WHERE voice_channel_id = ? OR text_channel_id = ?)",
		channelID, channelID).Scan(&bound)
	if err != nil {
		return false, fmt.Errorf("failed to query binding: %w", err)
	}
	return bound, nil
}

// PurgeAll discards every binding. Called once at process start; rows
// from a previous run are never trusted.
func (s *Store) PurgeAll(ctx context.Context) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM sub_channel")
	if err != nil {
		return fmt.Errorf("failed to purge bindings: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		logger.InfoCF("registry", "Purged stale bindings", map[string]any{
			"count": n,
		})
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
