package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChanSinkDropsHeartbeatsWhenFull(t *testing.T) {
	s := NewChanSink(1)

	s.Emit(Event{Kind: KindLog, Message: "first"})
	s.Emit(Event{Kind: KindHeartbeat}) // buffer full, dropped

	got := <-s.Events()
	assert.Equal(t, "first", got.Message)

	s.Emit(Event{Kind: KindHeartbeat})
	got = <-s.Events()
	assert.Equal(t, KindHeartbeat, got.Kind)

	s.Close()
	s.Emit(Event{Kind: KindLog}) // no panic after close
	_, ok := <-s.Events()
	assert.False(t, ok)
}

func TestChanSinkBlocksForNonHeartbeat(t *testing.T) {
	s := NewChanSink(1)
	s.Emit(Event{Kind: KindLog, Message: "a"})

	delivered := make(chan struct{})
	go func() {
		s.Emit(Event{Kind: KindStatus, Message: "b"})
		close(delivered)
	}()

	select {
	case <-delivered:
		t.Fatal("status event must wait for buffer space")
	case <-time.After(50 * time.Millisecond):
	}

	assert.Equal(t, "a", (<-s.Events()).Message)
	<-delivered
	assert.Equal(t, "b", (<-s.Events()).Message)
}

func TestRecorderAndTee(t *testing.T) {
	var a, b Recorder
	sink := Tee(&a, nil, &b)
	sink.Emit(Event{Kind: KindProgress, Percent: 50})
	sink.Emit(Event{Kind: KindLog, Message: "x"})

	require.Len(t, a.Events(), 2)
	require.Len(t, b.Of(KindProgress), 1)
	assert.Equal(t, 50, b.Of(KindProgress)[0].Percent)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "heartbeat", KindHeartbeat.String())
	assert.Equal(t, "kind(42)", Kind(42).String())
}
