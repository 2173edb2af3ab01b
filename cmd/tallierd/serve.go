package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/arthurzam/securevote/internal/config"
	"github.com/arthurzam/securevote/internal/logging"
	"github.com/arthurzam/securevote/pkg/clique"
	"github.com/arthurzam/securevote/pkg/frontdoor"
	"github.com/arthurzam/securevote/pkg/orchestrator"
	"github.com/arthurzam/securevote/pkg/store"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New("tallierd")

	tlsConf, err := loadMeshTLSConfig(cfg)
	if err != nil {
		return fmt.Errorf("tallierd: tls config: %w", err)
	}

	self := cfg.Talliers[cfg.SelfID]
	cliqueManager, err := clique.NewManager(fmt.Sprintf("%s:%d", self.Host, self.Port), tlsConf, logger)
	if err != nil {
		return fmt.Errorf("tallierd: clique listener: %w", err)
	}
	defer cliqueManager.Close()

	st, stCloser, err := openStore(context.Background())
	if err != nil {
		return fmt.Errorf("tallierd: store: %w", err)
	}
	if stCloser != nil {
		defer stCloser()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	orch, err := orchestrator.New(ctx, st, cliqueManager, cfg.Peers(), cfg.SelfID, logger)
	if err != nil {
		return fmt.Errorf("tallierd: orchestrator: %w", err)
	}

	fd := frontdoor.New(orch, logger)
	frontdoorSrv := &http.Server{Addr: frontdoorAddr, Handler: fd.Mux()}
	go func() {
		logger.Printf("[tallierd] front door listening on %s", frontdoorAddr)
		if err := frontdoorSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("[tallierd] front door stopped: %v", err)
		}
	}()

	operatorSrv := &http.Server{Addr: operatorAddr, Handler: operatorMux(cfg)}
	go func() {
		logger.Printf("[tallierd] operator surface listening on %s", operatorAddr)
		if err := operatorSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("[tallierd] operator surface stopped: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	logger.Printf("[tallierd] shutting down")
	_ = frontdoorSrv.Shutdown(ctx)
	_ = operatorSrv.Shutdown(ctx)
	return orch.Shutdown(context.Background())
}

// loadMeshTLSConfig builds the mutual-TLS configuration the clique listener
// and dialer share, per spec.md §6: ClientAuth must verify against the
// shared CA.
func loadMeshTLSConfig(cfg config.Config) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.TLSCertFile, cfg.TLSKeyFile)
	if err != nil {
		return nil, fmt.Errorf("load keypair: %w", err)
	}
	caBytes, err := os.ReadFile(cfg.TLSCAFile)
	if err != nil {
		return nil, fmt.Errorf("read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caBytes) {
		return nil, fmt.Errorf("no certificates found in %s", cfg.TLSCAFile)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientAuth:   tls.RequireAndVerifyClientCert,
		ClientCAs:    pool,
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// openStore picks the Postgres adapter when DATABASE_URL is set, falling
// back to the in-memory adapter for local/dev runs (production deployments
// always set DATABASE_URL).
func openStore(ctx context.Context) (store.Store, func(), error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pg, err := store.ConnectPostgres(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	}
	return store.NewMemory(), nil, nil
}

// operatorMux is the gin-based health/debug surface, kept strictly separate
// from the vote path per spec.md's domain-stack wiring notes.
func operatorMux(cfg config.Config) http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/debug/elections", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"self_id":    cfg.SelfID,
			"candidates": cfg.Candidates,
			"talliers":   len(cfg.Talliers),
		})
	})
	return r
}
