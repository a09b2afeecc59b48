package reactor

import (
	"context"
	"testing"
	"time"
)

func TestChannelSendReceive(t *testing.T) {
	ch := NewChannel(2)
	if err := ch.Send(context.Background(), "a"); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	msg, err := ch.Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if msg != "a" {
		t.Errorf("Receive = %v, want a", msg)
	}
}

func TestChannelTrySendFull(t *testing.T) {
	ch := NewChannel(1)
	if err := ch.TrySend("x"); err != nil {
		t.Fatalf("first TrySend failed: %v", err)
	}
	if err := ch.TrySend("y"); err != ErrChannelFull {
		t.Errorf("second TrySend err = %v, want ErrChannelFull", err)
	}
}

func TestChannelTryReceiveEmpty(t *testing.T) {
	ch := NewChannel(1)
	_, ok, err := ch.TryReceive()
	if err != nil {
		t.Fatalf("TryReceive failed: %v", err)
	}
	if ok {
		t.Errorf("TryReceive ok = true on empty channel")
	}
}

func TestChannelClose(t *testing.T) {
	ch := NewChannel(1)
	if ch.IsClosed() {
		t.Fatalf("new channel reports closed")
	}
	ch.Close()
	if !ch.IsClosed() {
		t.Errorf("closed channel reports not closed")
	}
	select {
	case <-ch.Closed():
	case <-time.After(time.Second):
		t.Errorf("Closed() did not fire within 1s")
	}
	if err := ch.Send(context.Background(), "x"); err != ErrChannelClosed {
		t.Errorf("Send after close err = %v, want ErrChannelClosed", err)
	}
	if _, err := ch.Receive(context.Background()); err != ErrChannelClosed {
		t.Errorf("Receive after close err = %v, want ErrChannelClosed", err)
	}
}

func TestChannelCloseIdempotent(t *testing.T) {
	ch := NewChannel(1)
	ch.Close()
	ch.Close() // must not panic
}

func TestChannelReceiveContextCancel(t *testing.T) {
	ch := NewChannel(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := ch.Receive(ctx); err != context.Canceled {
		t.Errorf("Receive with cancelled ctx = %v, want context.Canceled", err)
	}
}
