package frame

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/tea-analyzer/client/internal/model"
	"github.com/tea-analyzer/client/internal/transport"
)

const (
	// DefaultFPS is the default capture rate for periodic streaming.
	DefaultFPS = 2

	minFPS = 1
	maxFPS = 15
)

// ClampFPS bounds a frames-per-second value to the supported range.
func ClampFPS(fps int) int {
	if fps < minFPS {
		return minFPS
	}
	if fps > maxFPS {
		return maxFPS
	}
	return fps
}

// Streamer periodically captures a frame from a source and sends it over
// a channel. The interval timer is the only scheduling mechanism: a tick
// is skipped when the channel is not open, and a frame is dropped when
// the channel reports busy.
type Streamer struct {
	source  Source
	channel transport.Channel
	quality float64
	fps     int

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

// NewStreamer creates a streamer. fps and quality are clamped to their
// supported ranges; zero values select the defaults.
func NewStreamer(source Source, channel transport.Channel, fps int, quality float64) *Streamer {
	if fps == 0 {
		fps = DefaultFPS
	}
	if quality == 0 {
		quality = DefaultQuality
	}
	return &Streamer{
		source:  source,
		channel: channel,
		fps:     ClampFPS(fps),
		quality: ClampQuality(quality),
	}
}

// Start begins periodic capture+send until Stop is called or ctx ends.
func (s *Streamer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("streamer already running")
	}
	if s.channel.State() != transport.StateOpen {
		return model.ErrChannelClosed
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	interval := time.Second / time.Duration(s.fps)
	log.Printf("frame: streaming at %d fps, quality %.2f", s.fps, s.quality)

	go s.loop(runCtx, interval)
	return nil
}

func (s *Streamer) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.captureAndSend(ctx)
		}
	}
}

// captureAndSend pushes one frame; failures only log, the timer keeps going.
func (s *Streamer) captureAndSend(ctx context.Context) {
	if s.channel.State() != transport.StateOpen {
		return
	}

	img, err := s.source.NextFrame(ctx)
	if err != nil {
		log.Printf("frame: capture failed: %v", err)
		return
	}

	payload, err := EncodeJPEG(img, s.quality)
	if err != nil {
		log.Printf("frame: encode failed: %v", err)
		return
	}

	if err := s.channel.SendFrame(ctx, payload); err != nil {
		if errors.Is(err, model.ErrChannelBusy) {
			// Previous frame still in flight; drop this one.
			return
		}
		log.Printf("frame: send failed: %v", err)
	}
}

// Stop halts the capture timer. Safe to call when not running.
func (s *Streamer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cancel()
	s.cancel = nil
	s.running = false
	log.Printf("frame: streaming stopped")
}

// Running reports whether the streamer is active.
func (s *Streamer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}
