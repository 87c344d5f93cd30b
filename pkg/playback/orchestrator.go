// Package playback turns normalized chat text into played utterances.
// It owns the table of active sessions and the scratch directory that
// holds per-utterance audio artifacts; an artifact never outlives its
// play attempt.
package playback

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/midorin-Linux/discord-parrot/pkg/logger"
	"github.com/midorin-Linux/discord-parrot/pkg/voicevox"
)

var (
	ErrNoActiveSession = errors.New("no active voice session")
	ErrArtifactIO      = errors.New("audio artifact i/o failed")
)

type Orchestrator struct {
	client     *voicevox.Client
	scratchDir string
	speakerID  int
	speedScale float64

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewOrchestrator creates an orchestrator that synthesizes with the
// given default speaker and speed scale and stores artifacts under
// scratchDir (created if absent).
func NewOrchestrator(client *voicevox.Client, scratchDir string, speakerID int, speedScale float64) (*Orchestrator, error) {
	if err := os.MkdirAll(scratchDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create scratch dir: %v", ErrArtifactIO, err)
	}

	return &Orchestrator{
		client:     client,
		scratchDir: scratchDir,
		speakerID:  speakerID,
		speedScale: speedScale,
		sessions:   make(map[string]*Session),
	}, nil
}

// Register creates the session for a guild. A second registration for
// the same guild replaces the first; the replaced transport connection
// is closed.
func (o *Orchestrator) Register(guildID, voiceChannelID, textChannelID string, conn Connection) *Session {
	session := &Session{
		GuildID:        guildID,
		VoiceChannelID: voiceChannelID,
		TextChannelID:  textChannelID,
		conn:           conn,
	}

	o.mu.Lock()
	previous := o.sessions[guildID]
	o.sessions[guildID] = session
	o.mu.Unlock()

	if previous != nil {
		logger.WarnCF("playback", "Replacing existing session", map[string]any{
			"guild_id": guildID,
		})
		// The session mutex orders this close after any enqueue still
		// holding the old session, so the transport rejects late tracks
		// instead of stranding them.
		previous.mu.Lock()
		err := previous.conn.Close()
		previous.mu.Unlock()
		if err != nil {
			logger.WarnCF("playback", "Failed to close replaced connection", map[string]any{
				"guild_id": guildID,
				"error":    err.Error(),
			})
		}
	}

	logger.InfoCF("playback", "Session registered", map[string]any{
		"guild_id":      guildID,
		"voice_channel": voiceChannelID,
		"text_channel":  textChannelID,
	})
	return session
}

// Lookup returns the active session for a guild, if any.
func (o *Orchestrator) Lookup(guildID string) (*Session, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	session, ok := o.sessions[guildID]
	return session, ok
}

// Remove destroys the guild's session and closes its transport
// connection. Removing an absent session is not an error.
func (o *Orchestrator) Remove(guildID string) error {
	o.mu.Lock()
	session := o.sessions[guildID]
	delete(o.sessions, guildID)
	o.mu.Unlock()

	if session == nil {
		return nil
	}

	logger.InfoCF("playback", "Session removed", map[string]any{
		"guild_id": guildID,
	})

	session.mu.Lock()
	defer session.mu.Unlock()
	return session.conn.Close()
}

// Enqueue synthesizes text and appends the resulting utterance to the
// guild's playback queue. Any failure aborts the whole enqueue and is
// returned to the caller; nothing is retried here.
func (o *Orchestrator) Enqueue(ctx context.Context, guildID, text string) error {
	session, ok := o.Lookup(guildID)
	if !ok {
		return fmt.Errorf("%w: guild %s", ErrNoActiveSession, guildID)
	}

	queryDoc, err := o.client.CreateQuery(ctx, text, o.speakerID, o.speedScale)
	if err != nil {
		return fmt.Errorf("audio query failed: %w", err)
	}

	audio, err := o.client.Synthesize(ctx, queryDoc, o.speakerID)
	if err != nil {
		return fmt.Errorf("synthesis failed: %w", err)
	}

	path, err := o.writeArtifact(audio)
	if err != nil {
		return err
	}

	utterance := &Utterance{
		Text:         text,
		SpeakerID:    o.speakerID,
		SpeedScale:   o.speedScale,
		ArtifactPath: path,
		state:        StateQueued,
	}

	// The release guard deletes the artifact exactly once no matter
	// which exit path the track takes; a deletion failure is logged,
	// never escalated.
	var releaseOnce sync.Once
	release := func() {
		releaseOnce.Do(func() {
			if err := os.Remove(path); err != nil {
				logger.WarnCF("playback", "Failed to delete artifact", map[string]any{
					"path":  path,
					"error": err.Error(),
				})
				return
			}
			logger.DebugCF("playback", "Deleted artifact", map[string]any{
				"path": path,
			})
		})
	}

	session.mu.Lock()
	defer session.mu.Unlock()

	err = session.conn.Enqueue(path,
		func() {
			utterance.setState(StatePlaying)
		},
		func(trackErr error) {
			if trackErr != nil {
				utterance.setState(StateFailed)
				logger.WarnCF("playback", "Track errored", map[string]any{
					"guild_id": guildID,
					"error":    trackErr.Error(),
				})
			} else {
				utterance.setState(StateCompleted)
			}
			release()
		})
	if err != nil {
		utterance.setState(StateFailed)
		release()
		return fmt.Errorf("failed to enqueue track: %w", err)
	}

	logger.DebugCF("playback", "Utterance enqueued", map[string]any{
		"guild_id":    guildID,
		"text_length": len(text),
		"artifact":    path,
	})
	return nil
}

// Skip drops the currently playing utterance and moves on to the next
// queued one.
func (o *Orchestrator) Skip(guildID string) error {
	session, ok := o.Lookup(guildID)
	if !ok {
		return fmt.Errorf("%w: guild %s", ErrNoActiveSession, guildID)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	return session.conn.Skip()
}

// SweepScratch deletes every leftover artifact in the scratch
// directory. Called once at process start to clean up after a crash.
func (o *Orchestrator) SweepScratch() error {
	entries, err := os.ReadDir(o.scratchDir)
	if err != nil {
		return fmt.Errorf("%w: read scratch dir: %v", ErrArtifactIO, err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(o.scratchDir, entry.Name())
		if err := os.Remove(path); err != nil {
			logger.WarnCF("playback", "Failed to sweep artifact", map[string]any{
				"path":  path,
				"error": err.Error(),
			})
			continue
		}
		removed++
	}

	if removed > 0 {
		logger.InfoCF("playback", "Swept leftover artifacts", map[string]any{
			"count": removed,
		})
	}
	return nil
}

func (o *Orchestrator) writeArtifact(audio []byte) (string, error) {
	path := filepath.Join(o.scratchDir, uuid.NewString()+".wav")
	if err := os.WriteFile(path, audio, 0o644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrArtifactIO, err)
	}
	return path, nil
}
