package main

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/arthurzam/securevote/internal/config"
	"github.com/arthurzam/securevote/pkg/channel"
	"github.com/arthurzam/securevote/pkg/clique"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func runDialTest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	tlsConf, err := loadMeshTLSConfig(cfg)
	if err != nil {
		return fmt.Errorf("dial-test: tls config: %w", err)
	}

	self := cfg.Talliers[cfg.SelfID]
	manager, err := clique.NewManager(fmt.Sprintf("%s:%d", self.Host, self.Port), tlsConf, nil)
	if err != nil {
		return fmt.Errorf("dial-test: listen: %w", err)
	}
	defer manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eid := uuid.New()
	fmt.Printf("dial-test: forming clique %s as party %d of %d\n", eid, cfg.SelfID, len(cfg.Talliers))
	chans, err := manager.StartClique(ctx, eid, cfg.Peers(), cfg.SelfID, func(conn net.Conn) channel.Channel {
		return channel.NewTCPChannel(conn, 1)
	})
	if err != nil {
		return fmt.Errorf("dial-test: clique formation failed: %w", err)
	}
	for i, c := range chans {
		if i == cfg.SelfID {
			continue
		}
		_ = c.Close()
	}
	fmt.Printf("dial-test: formed clique with %d live peer channels\n", len(chans)-1)
	return nil
}
