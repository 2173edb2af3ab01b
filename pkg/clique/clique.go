// Package clique implements the per-election TLS mesh rendezvous: a long
// running listener plus, per election, a fully connected set of D channels
// formed by dialing lower-indexed peers and accepting higher-indexed ones.
// It ports mpc_manager.py's TallierManager.
package clique

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"

	"github.com/arthurzam/securevote/pkg/channel"
	"github.com/arthurzam/securevote/pkg/wire"
	"github.com/google/uuid"
)

// ErrHandshakeReject names a rejected handshake: a connection that targets a
// slot already occupied, or a dial reply that carries a mismatched election
// id (spec.md §7). The Manager logs and closes such connections itself,
// never failing the mesh; no Manager method returns this error.
var ErrHandshakeReject = errors.New("clique: duplicate or mismatched handshake")

// Factory wraps an established, handshaken connection into a Channel of the
// framing the caller requested (scalar width 1, or vector width S).
type Factory func(conn net.Conn) channel.Channel

// Address identifies a peer tallier's listener.
type Address struct {
	Host string
	Port int
}

func (a Address) String() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

type waitItem struct {
	selfID     int
	electionID uuid.UUID
	factory    Factory

	mu       sync.Mutex
	talliers []channel.Channel
	missing  int
	ready    chan struct{}
	readyOne sync.Once
}

func (w *waitItem) addTallier(connID int, conn net.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.talliers[connID] != nil {
		return
	}
	w.talliers[connID] = w.factory(conn)
	w.missing--
	if w.missing == 0 {
		w.readyOne.Do(func() { close(w.ready) })
	}
}

func (w *waitItem) occupied(connID int) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.talliers[connID] != nil
}

// Manager owns the mesh listener and the rendezvous state for every
// in-progress or active election, porting TallierManager's mesh/pending
// maps.
type Manager struct {
	tlsConfig *tls.Config
	listener  net.Listener

	mu      sync.Mutex
	mesh    map[uuid.UUID]*waitItem
	pending map[uuid.UUID]chan struct{}

	logger *log.Logger
}

// NewManager starts listening on addr with the given TLS configuration
// (mutual TLS: ClientAuth must be tls.RequireAndVerifyClientCert, and
// ClientCAs must carry the common CA, per spec.md §6).
func NewManager(addr string, tlsConfig *tls.Config, logger *log.Logger) (*Manager, error) {
	ln, err := tls.Listen("tcp", addr, tlsConfig)
	if err != nil {
		return nil, fmt.Errorf("clique: listen %s: %w", addr, err)
	}
	if logger == nil {
		logger = log.Default()
	}
	m := &Manager{
		tlsConfig: tlsConfig,
		listener:  ln,
		mesh:      make(map[uuid.UUID]*waitItem),
		pending:   make(map[uuid.UUID]chan struct{}),
		logger:    logger,
	}
	go m.acceptLoop()
	return m, nil
}

// Close stops the listener; in-progress meshes are left to time out
// upstream per spec.md §4.C's failure semantics.
func (m *Manager) Close() error {
	return m.listener.Close()
}

func (m *Manager) acceptLoop() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return
		}
		go m.reactConn(conn)
	}
}

func (m *Manager) reactConn(conn net.Conn) {
	buf := make([]byte, wire.HandshakeSize)
	if _, err := readFull(conn, buf); err != nil {
		m.logger.Printf("[clique] incomplete handshake read: %v", err)
		conn.Close()
		return
	}
	hs, err := wire.DecodeHandshake(buf)
	if err != nil {
		m.logger.Printf("[clique] bad handshake: %v", err)
		conn.Close()
		return
	}
	eid := uuid.UUID(hs.ElectionID)

	item := m.getWaitItem(eid)
	if item.occupied(int(hs.ConnID)) {
		m.logger.Printf("[clique] duplicate conn=%d for election %s, closing", hs.ConnID, eid)
		conn.Close()
		return
	}

	reply := wire.Handshake{ConnID: byte(item.selfID), ElectionID: hs.ElectionID}
	enc := reply.Encode()
	if _, err := conn.Write(enc[:]); err != nil {
		m.logger.Printf("[clique] failed to reply handshake: %v", err)
		conn.Close()
		return
	}
	item.addTallier(int(hs.ConnID), conn)
}

func (m *Manager) getWaitItem(eid uuid.UUID) *waitItem {
	m.mu.Lock()
	if item, ok := m.mesh[eid]; ok {
		m.mu.Unlock()
		return item
	}
	signal, ok := m.pending[eid]
	if !ok {
		signal = make(chan struct{})
		m.pending[eid] = signal
	}
	m.mu.Unlock()

	<-signal

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mesh[eid]
}

func (m *Manager) dial(ctx context.Context, eid uuid.UUID, selfID int, addr Address) {
	m.mu.Lock()
	item := m.mesh[eid]
	m.mu.Unlock()

	var d tls.Dialer
	d.Config = m.tlsConfig
	conn, err := d.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		m.logger.Printf("[clique] dial %s failed: %v", addr, err)
		return
	}

	hs := wire.Handshake{ConnID: byte(selfID), ElectionID: eid}
	enc := hs.Encode()
	if _, err := conn.Write(enc[:]); err != nil {
		m.logger.Printf("[clique] dial %s: write handshake: %v", addr, err)
		conn.Close()
		return
	}

	buf := make([]byte, wire.HandshakeSize)
	if _, err := readFull(conn, buf); err != nil {
		m.logger.Printf("[clique] dial %s: closed before handshake reply", addr)
		return
	}
	reply, err := wire.DecodeHandshake(buf)
	if err != nil {
		m.logger.Printf("[clique] dial %s: bad handshake reply: %v", addr, err)
		conn.Close()
		return
	}
	if uuid.UUID(reply.ElectionID) != eid {
		m.logger.Printf("[clique] dial %s: reply for election %s, expected %s", addr, uuid.UUID(reply.ElectionID), eid)
		conn.Close()
		return
	}

	if item.occupied(int(reply.ConnID)) {
		m.logger.Printf("[clique] dial %s: got another conn=%d for election %s", addr, reply.ConnID, eid)
		conn.Close()
		return
	}
	item.addTallier(int(reply.ConnID), conn)
}

// StartClique establishes the mesh for eid: dials every peer with index <
// selfID, waits for the acceptor side to hand in every peer with index >
// selfID, and returns a slice of length len(peers) with a nil entry at
// selfID (the caller substitutes a SelfChannel), porting
// TallierManager.start_clique.
func (m *Manager) StartClique(ctx context.Context, eid uuid.UUID, peers []Address, selfID int, factory Factory) ([]channel.Channel, error) {
	m.logger.Printf("[clique] loading clique %s", eid)

	item := &waitItem{
		selfID:     selfID,
		electionID: eid,
		factory:    factory,
		talliers:   make([]channel.Channel, len(peers)),
		missing:    len(peers) - 1,
		ready:      make(chan struct{}),
	}

	m.mu.Lock()
	m.mesh[eid] = item
	signal, hasPending := m.pending[eid]
	m.mu.Unlock()
	if hasPending {
		close(signal)
	}

	for index, addr := range peers {
		if index < selfID {
			go m.dial(ctx, eid, selfID, addr)
		}
	}

	select {
	case <-item.ready:
	case <-ctx.Done():
		m.mu.Lock()
		delete(m.mesh, eid)
		m.mu.Unlock()
		return nil, ctx.Err()
	}

	m.logger.Printf("[clique] got all peers for %s", eid)
	m.mu.Lock()
	delete(m.mesh, eid)
	delete(m.pending, eid)
	m.mu.Unlock()

	return append([]channel.Channel(nil), item.talliers...), nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
