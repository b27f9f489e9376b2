package stream

import (
	"context"
	"testing"
	"time"
)

func TestPump_FlushesAtCadence(t *testing.T) {
	conn := &fakeConn{}
	c := newTestController(&fakeAPI{}, &fakeDialer{conn: conn})
	if err := c.Enable(context.Background()); err != nil {
		t.Fatalf("Enable() error = %v", err)
	}

	p := NewPump(c, XYB, 100)
	ticks := 0
	p.BeforeFlush(func(_ context.Context, elapsed time.Duration) error {
		ticks++
		c.Enqueue(XYBUpdate(1, 0.3, 0.3, float32(ticks%2)))
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	conn.mu.Lock()
	sent := len(conn.frames)
	conn.mu.Unlock()

	if sent == 0 {
		t.Fatal("pump sent no frames")
	}
	// 100 fps for 200ms, plus the initial burst token.
	if sent > 25 {
		t.Errorf("pump sent %d frames, rate limit not applied", sent)
	}
	if sent != ticks {
		t.Errorf("sent %d frames for %d ticks", sent, ticks)
	}
}

func TestPump_IdleWhileDisabled(t *testing.T) {
	conn := &fakeConn{}
	c := newTestController(&fakeAPI{}, &fakeDialer{conn: conn})

	p := NewPump(c, RGB, 0)
	p.BeforeFlush(func(context.Context, time.Duration) error {
		c.Enqueue(RGBUpdate(1, 1, 1, 1))
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(conn.frames) != 0 {
		t.Errorf("disabled pump sent %d frames", len(conn.frames))
	}
}
