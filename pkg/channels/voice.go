package channels

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jonas747/dca"

	"github.com/midorin-Linux/discord-parrot/pkg/logger"
)

const (
	trackQueueSize   = 64
	frameSendTimeout = 5 * time.Second
)

var errConnectionClosed = errors.New("voice connection closed")

// gatewayVoice is the slice of *discordgo.VoiceConnection the transport
// calls by method. The opus frame channel is carried separately because
// discordgo exposes it as a struct field.
type gatewayVoice interface {
	Speaking(b bool) error
	Disconnect() error
}

// voiceConnection adapts a discordgo voice connection to the playback
// Connection interface. A single worker goroutine drains the track
// queue, which is what guarantees FIFO playback per session.
//
// Once Close has begun, Enqueue and Skip fail with a closed error;
// tracks still queued are failed by drain so their cleanup callbacks
// fire. Every accepted track gets its onDone exactly once.
type voiceConnection struct {
	voice    gatewayVoice
	opusSend chan<- []byte

	tracks chan *voiceTrack
	skip   chan struct{}
	quit   chan struct{}

	mu     sync.Mutex
	closed bool
}

type voiceTrack struct {
	path    string
	onStart func()
	onDone  func(error)
}

func newVoiceConnection(vc *discordgo.VoiceConnection) *voiceConnection {
	return newTransport(vc, vc.OpusSend)
}

func newTransport(voice gatewayVoice, opusSend chan<- []byte) *voiceConnection {
	c := &voiceConnection{
		voice:    voice,
		opusSend: opusSend,
		tracks:   make(chan *voiceTrack, trackQueueSize),
		skip:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}
	go c.run()
	return c
}

func (c *voiceConnection) Enqueue(path string, onStart func(), onDone func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnectionClosed
	}

	track := &voiceTrack{path: path, onStart: onStart, onDone: onDone}
	select {
	case c.tracks <- track:
		return nil
	default:
		return fmt.Errorf("playback queue is full")
	}
}

func (c *voiceConnection) Skip() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnectionClosed
	}

	select {
	case c.skip <- struct{}{}:
	default:
		// A skip is already pending; collapsing repeats is fine.
	}
	return nil
}

// Close marks the connection closed before waking the worker, so a
// concurrent Enqueue either lands its track ahead of the drain or is
// rejected; no track can slip in after the worker is gone.
func (c *voiceConnection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.quit)
	return c.voice.Disconnect()
}

func (c *voiceConnection) run() {
	for {
		select {
		case <-c.quit:
			c.drain()
			return
		case track := <-c.tracks:
			// A skip requested while idle must not cancel the next track.
			select {
			case <-c.skip:
			default:
			}
			track.onDone(c.play(track))
		}
	}
}

// drain fails every still-queued track so its artifact cleanup fires.
func (c *voiceConnection) drain() {
	for {
		select {
		case track := <-c.tracks:
			track.onDone(errConnectionClosed)
		default:
			return
		}
	}
}

// play streams one artifact through ffmpeg/opus into the voice
// connection. Returns nil on completion or skip, an error when the
// track could not be delivered.
func (c *voiceConnection) play(track *voiceTrack) error {
	options := *dca.StdEncodeOptions
	options.RawOutput = true
	options.Bitrate = 96

	encode, err := dca.EncodeFile(track.path, &options)
	if err != nil {
		return fmt.Errorf("failed to start encoder: %w", err)
	}
	defer encode.Cleanup()

	if err := c.voice.Speaking(true); err != nil {
		return fmt.Errorf("failed to set speaking state: %w", err)
	}
	defer func() {
		if err := c.voice.Speaking(false); err != nil {
			logger.DebugCF("discord", "Failed to clear speaking state", map[string]any{
				"error": err.Error(),
			})
		}
	}()

	track.onStart()

	for {
		frame, err := encode.OpusFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("opus frame read failed: %w", err)
		}

		select {
		case c.opusSend <- frame:
		case <-c.skip:
			return nil
		case <-c.quit:
			return errConnectionClosed
		case <-time.After(frameSendTimeout):
			return fmt.Errorf("timeout sending opus frame")
		}
	}
}
