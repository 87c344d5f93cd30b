package playback

import "sync"

// Connection is the per-session playback queue owned by the voice
// transport. FIFO ordering of enqueued tracks is the transport's
// responsibility, not the orchestrator's. onStart fires when the track
// begins playing; onDone fires once when it ends, with a nil error on
// normal completion.
type Connection interface {
	Enqueue(path string, onStart func(), onDone func(error)) error
	Skip() error
	Close() error
}

// Session is one live voice connection, bound to the text channel whose
// messages it reads out. At most one Session exists per guild.
type Session struct {
	GuildID        string
	VoiceChannelID string
	TextChannelID  string

	conn Connection
	// mu serializes queue-mutating operations (enqueue, skip) for this
	// session; sessions are independent of each other.
	mu sync.Mutex
}

// UtteranceState tracks one unit of speech through its lifecycle.
type UtteranceState int

const (
	StateQueued UtteranceState = iota
	StatePlaying
	StateCompleted
	StateFailed
)

func (s UtteranceState) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "queued"
	}
}

// Utterance is one queued or playing unit of synthesized speech. It is
// owned exclusively by its session's queue and destroyed, together with
// its audio artifact, on reaching a terminal state.
type Utterance struct {
	Text         string
	SpeakerID    int
	SpeedScale   float64
	ArtifactPath string

	mu    sync.Mutex
	state UtteranceState
}

func (u *Utterance) State() UtteranceState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

func (u *Utterance) setState(state UtteranceState) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.state = state
}
