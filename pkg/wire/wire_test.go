package wire_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/arthurzam/securevote/pkg/wire"
	"github.com/stretchr/testify/require"
)

func TestFramerRoundTrip(t *testing.T) {
	f := wire.NewFramer(3)
	var buf bytes.Buffer
	require.NoError(t, f.WriteFrame(&buf, 42, []uint32{1, 2, 3}))
	msgid, values, err := f.ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, uint32(42), msgid)
	require.Equal(t, []uint32{1, 2, 3}, values)
}

func TestFramerPadsShortValues(t *testing.T) {
	f := wire.NewFramer(4)
	var buf bytes.Buffer
	require.NoError(t, f.WriteFrame(&buf, 1, []uint32{7}))
	_, values, err := f.ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, []uint32{7, 0, 0, 0}, values)
}

func TestFramerTruncatesLongValues(t *testing.T) {
	f := wire.NewFramer(2)
	var buf bytes.Buffer
	require.NoError(t, f.WriteFrame(&buf, 1, []uint32{7, 8, 9}))
	_, values, err := f.ReadFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, []uint32{7, 8}, values)
}

func TestHandshakeRoundTrip(t *testing.T) {
	h := wire.Handshake{ConnID: 3}
	copy(h.ElectionID[:], bytes.Repeat([]byte{0xAB}, 16))
	enc := h.Encode()
	got, err := wire.DecodeHandshake(enc[:])
	require.NoError(t, err)
	require.Equal(t, h, got)
}

func TestQueueFIFOPerMsgid(t *testing.T) {
	q := wire.NewQueue()
	q.Deliver(1, []uint32{1})
	q.Deliver(1, []uint32{2})
	q.Deliver(2, []uint32{9})

	done := make(chan struct{})
	v, ok := q.Take(1, done)
	require.True(t, ok)
	require.Equal(t, []uint32{1}, v)

	v, ok = q.Take(2, done)
	require.True(t, ok)
	require.Equal(t, []uint32{9}, v)

	v, ok = q.Take(1, done)
	require.True(t, ok)
	require.Equal(t, []uint32{2}, v)
}

func TestQueueWaiterWokenByLateDelivery(t *testing.T) {
	q := wire.NewQueue()
	done := make(chan struct{})
	result := make(chan []uint32, 1)
	go func() {
		v, ok := q.Take(5, done)
		require.True(t, ok)
		result <- v
	}()
	time.Sleep(10 * time.Millisecond)
	q.Deliver(5, []uint32{42})
	select {
	case v := <-result:
		require.Equal(t, []uint32{42}, v)
	case <-time.After(time.Second):
		t.Fatal("waiter was never woken")
	}
}

func TestQueueAbandonWakesWaiters(t *testing.T) {
	q := wire.NewQueue()
	done := make(chan struct{})
	result := make(chan bool, 1)
	go func() {
		_, ok := q.Take(1, done)
		result <- ok
	}()
	time.Sleep(10 * time.Millisecond)
	q.Abandon()
	select {
	case ok := <-result:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("abandon did not wake waiter")
	}
}
