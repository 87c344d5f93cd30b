// Package dictionary keeps the engine's pronunciation dictionary and a
// local snapshot file consistent.
//
// Multi-step operations (Add, Edit, Remove, Reset) do a check-then-act
// against the remote engine with no transaction boundary; two concurrent
// callers can interleave and lose an update. With a single operator
// issuing commands the race is documented here rather than fixed.
package dictionary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/midorin-Linux/discord-parrot/pkg/logger"
	"github.com/midorin-Linux/discord-parrot/pkg/voicevox"
)

var (
	ErrNotFound      = errors.New("word not found in dictionary")
	ErrAlreadyExists = errors.New("word already exists in dictionary")
)

// Word is a decoded dictionary entry as the engine reports it.
type Word struct {
	RemoteID      string
	Surface       string `json:"surface"`
	Pronunciation string `json:"pronunciation"`
	AccentType    int    `json:"accent_type"`
}

type Synchronizer struct {
	client       *voicevox.Client
	snapshotPath string
}

// NewSynchronizer builds a synchronizer over the engine client. The
// snapshot at snapshotPath is a full-dictionary export, overwritten
// wholesale after every successful mutation.
func NewSynchronizer(client *voicevox.Client, snapshotPath string) *Synchronizer {
	return &Synchronizer{
		client:       client,
		snapshotPath: snapshotPath,
	}
}

func (s *Synchronizer) fetch(ctx context.Context) (map[string]Word, error) {
	raw, err := s.client.FetchDictionary(ctx)
	if err != nil {
		return nil, err
	}

	var dict map[string]Word
	if err := json.Unmarshal(raw, &dict); err != nil {
		return nil, fmt.Errorf("failed to decode dictionary: %w", err)
	}
	return dict, nil
}

// FindID resolves a surface form to the engine-assigned remote id with a
// linear scan over a fresh fetch. O(dictionary size) per call, which is
// fine for a user-curated dictionary.
func (s *Synchronizer) FindID(ctx context.Context, surface string) (string, error) {
	dict, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}

	for remoteID, word := range dict {
		if word.Surface == surface {
			return remoteID, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, surface)
}

// Add registers a new entry. Fails with ErrAlreadyExists when the
// surface is already present; the remote dictionary is left untouched.
func (s *Synchronizer) Add(ctx context.Context, entry voicevox.Entry) error {
	_, err := s.FindID(ctx, entry.Surface)
	if err == nil {
		return fmt.Errorf("%w: %q", ErrAlreadyExists, entry.Surface)
	}
	if !errors.Is(err, ErrNotFound) {
		return err
	}

	if err := s.client.AddWord(ctx, entry); err != nil {
		return err
	}
	return s.autoSave(ctx)
}

// Edit rewrites an existing entry in place.
func (s *Synchronizer) Edit(ctx context.Context, entry voicevox.Entry) error {
	if _, err := s.FindID(ctx, entry.Surface); err != nil {
		return err
	}

	if err := s.client.RewriteWord(ctx, entry); err != nil {
		return err
	}
	return s.autoSave(ctx)
}

// Remove deletes the entry for surface.
func (s *Synchronizer) Remove(ctx context.Context, surface string) error {
	remoteID, err := s.FindID(ctx, surface)
	if err != nil {
		return err
	}

	if err := s.client.DeleteWord(ctx, remoteID); err != nil {
		return err
	}
	return s.autoSave(ctx)
}

// Reset deletes every entry one by one; the engine offers no batch
// primitive. A failure mid-loop aborts and leaves the dictionary in a
// mixed state the caller has to recover manually — the error reports
// what failed, not which entries were already removed.
func (s *Synchronizer) Reset(ctx context.Context) error {
	dict, err := s.fetch(ctx)
	if err != nil {
		return err
	}

	remoteIDs := make([]string, 0, len(dict))
	for remoteID := range dict {
		remoteIDs = append(remoteIDs, remoteID)
	}
	sort.Strings(remoteIDs)

	for _, remoteID := range remoteIDs {
		if err := s.client.DeleteWord(ctx, remoteID); err != nil {
			return fmt.Errorf("reset aborted: %w", err)
		}
	}

	logger.InfoCF("dictionary", "Dictionary reset", map[string]any{
		"deleted": len(remoteIDs),
	})
	return s.autoSave(ctx)
}

// Restore imports the local snapshot back into the engine.
func (s *Synchronizer) Restore(ctx context.Context) error {
	data, err := os.ReadFile(s.snapshotPath)
	if err != nil {
		return fmt.Errorf("failed to read dictionary snapshot: %w", err)
	}

	if err := s.client.ImportDictionary(ctx, data); err != nil {
		return err
	}
	return s.autoSave(ctx)
}

// List returns the decoded entries sorted by surface for stable output.
func (s *Synchronizer) List(ctx context.Context) ([]Word, error) {
	dict, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	words := make([]Word, 0, len(dict))
	for remoteID, word := range dict {
		word.RemoteID = remoteID
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		return words[i].Surface < words[j].Surface
	})
	return words, nil
}

// autoSave re-reads the dictionary from the engine and overwrites the
// snapshot wholesale, so the file reflects engine-confirmed state rather
// than the payload this client just sent.
func (s *Synchronizer) autoSave(ctx context.Context) error {
	raw, err := s.client.FetchDictionary(ctx)
	if err != nil {
		return fmt.Errorf("auto-save failed: %w", err)
	}

	if err := os.WriteFile(s.snapshotPath, raw, 0o644); err != nil {
		return fmt.Errorf("auto-save failed: %w", err)
	}

	logger.DebugCF("dictionary", "Snapshot saved", map[string]any{
		"path": s.snapshotPath,
	})
	return nil
}
