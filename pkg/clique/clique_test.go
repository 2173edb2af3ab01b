package clique_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"testing"
	"time"

	"github.com/arthurzam/securevote/pkg/channel"
	"github.com/arthurzam/securevote/pkg/clique"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// selfSignedTLSConfig builds a loopback-only TLS config for tests; production
// deployments use mutual TLS against a shared CA (spec.md §6), which is out
// of scope for an in-process mesh-formation test.
func selfSignedTLSConfig(t *testing.T) *tls.Config {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"localhost"},
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	cert := tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
	return &tls.Config{
		Certificates:       []tls.Certificate{cert},
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
	}
}

func scalarFactory(conn net.Conn) channel.Channel {
	return channel.NewTCPChannel(conn, 1)
}

func TestMeshFormationLiveness(t *testing.T) {
	const d = 3
	managers := make([]*clique.Manager, d)
	addrs := make([]clique.Address, d)
	tlsConf := selfSignedTLSConfig(t)

	for i := 0; i < d; i++ {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		port := ln.Addr().(*net.TCPAddr).Port
		ln.Close()
		addrs[i] = clique.Address{Host: "127.0.0.1", Port: port}
	}
	for i := 0; i < d; i++ {
		m, err := clique.NewManager(addrs[i].String(), tlsConf, nil)
		require.NoError(t, err)
		managers[i] = m
		defer m.Close()
	}

	eid := uuid.New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	results := make(chan struct {
		idx      int
		channels []channel.Channel
		err      error
	}, d)
	for i := 0; i < d; i++ {
		go func(idx int) {
			chans, err := managers[idx].StartClique(ctx, eid, addrs, idx, scalarFactory)
			results <- struct {
				idx      int
				channels []channel.Channel
				err      error
			}{idx, chans, err}
		}(i)
	}

	collected := make([][]channel.Channel, d)
	for i := 0; i < d; i++ {
		r := <-results
		require.NoError(t, r.err)
		require.Len(t, r.channels, d)
		collected[r.idx] = r.channels
	}

	for i, chans := range collected {
		for j, ch := range chans {
			if i == j {
				require.Nil(t, ch, "own slot should be left nil for the caller to substitute a SelfChannel")
			} else {
				require.NotNil(t, ch, "slot %d should be a live channel for tallier %d", j, i)
			}
		}
	}
}
