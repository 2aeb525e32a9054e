package bluetooth

import (
	"context"
	"time"
)

// PacingConfig holds the inter-frame delays. Nothing on the link is
// acknowledged; these delays are the only flow control.
type PacingConfig struct {
	AuthDelay      time.Duration // between handshake frames
	FileCheckDelay time.Duration // after FILE_CHECK
	StartDelay     time.Duration // after START
	ChunkDelay     time.Duration // after each DATA chunk
	EndDelay       time.Duration // before END
	HeartbeatDelay time.Duration // before the cross-eye heartbeat
	FrameDelay     time.Duration // between teleprompter and Even-AI frames
	SettleDelay    time.Duration // after the handshake, before content is sent
}

// DefaultPacingConfig returns delays known to work with current firmware.
func DefaultPacingConfig() PacingConfig {
	return PacingConfig{
		AuthDelay:      100 * time.Millisecond,
		FileCheckDelay: 200 * time.Millisecond,
		StartDelay:     50 * time.Millisecond,
		ChunkDelay:     30 * time.Millisecond,
		EndDelay:       200 * time.Millisecond,
		HeartbeatDelay: 100 * time.Millisecond,
		FrameDelay:     30 * time.Millisecond,
		SettleDelay:    500 * time.Millisecond,
	}
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
