// Package mpctest builds an in-process clique of D engines wired together
// over net.Pipe(), without TLS or a real listener, so pkg/mpc and pkg/voting
// tests (and tallierd's bench command) can exercise the full protocol stack
// without a network. Ports the in-memory wiring protocols/lss/keygen/network_test.go
// sets up for the teacher's threshold-signing rounds.
package mpctest

import (
	"context"
	"net"

	"github.com/arthurzam/securevote/pkg/channel"
	"github.com/arthurzam/securevote/pkg/mpc"
)

// Mesh holds D fully wired engines (engines[i] is tallier i's view of the
// clique) plus the background receive loops feeding their channels.
type Mesh struct {
	Engines []*mpc.Engine
	cancel  context.CancelFunc
}

// NewMesh builds a D-party clique with the given width (1 for scalar, S for
// vector) and prime p, wiring every pair of distinct talliers with a
// net.Pipe()-backed TCPChannel and every tallier's own slot with a
// SelfChannel.
func NewMesh(ctx context.Context, p uint64, d, width int, preferRnd bool) (*Mesh, error) {
	ctx, cancel := context.WithCancel(ctx)

	channels := make([][]channel.Channel, d)
	for i := range channels {
		channels[i] = make([]channel.Channel, d)
	}
	for i := 0; i < d; i++ {
		channels[i][i] = channel.NewSelfChannel(width)
	}
	for i := 0; i < d; i++ {
		for j := i + 1; j < d; j++ {
			connI, connJ := net.Pipe()
			channels[i][j] = channel.NewTCPChannel(connI, width)
			channels[j][i] = channel.NewTCPChannel(connJ, width)
		}
	}

	for i := 0; i < d; i++ {
		for j := 0; j < d; j++ {
			if i == j {
				continue
			}
			ch := channels[i][j]
			go func() {
				_ = ch.ReceiveLoop(ctx)
			}()
		}
	}

	engines := make([]*mpc.Engine, d)
	for i := 0; i < d; i++ {
		e, err := mpc.New(p, channels[i], i, width, preferRnd)
		if err != nil {
			cancel()
			return nil, err
		}
		engines[i] = e
	}

	return &Mesh{Engines: engines, cancel: cancel}, nil
}

// Close cancels every receive loop and closes every channel.
func (m *Mesh) Close() {
	m.cancel()
	for _, e := range m.Engines {
		_ = e.Close()
	}
}
