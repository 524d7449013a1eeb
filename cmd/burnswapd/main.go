package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"burnswap/config"
	"burnswap/core/events"
	"burnswap/core/types"
	"burnswap/native/exchange"
	"burnswap/observability/logging"
	"burnswap/observability/metrics"
	"burnswap/rpc"
	"burnswap/storage"
	"burnswap/token"
)

const snapshotInterval = 30 * time.Second

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "burnswap.toml", "path to burnswapd configuration file")
	flag.Parse()

	logger := logging.Setup("burnswapd", os.Getenv("BURNSWAP_ENV"))

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("burnswapd: load config: %v", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("burnswapd: create data dir: %v", err)
	}

	store, err := storage.NewStore(filepath.Join(cfg.DataDir, "burnswap.db"), nil)
	if err != nil {
		log.Fatalf("burnswapd: open store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("close store", "error", err)
		}
	}()

	registry, err := buildRegistry(cfg, store)
	if err != nil {
		log.Fatalf("burnswapd: restore ledger: %v", err)
	}

	sink := &eventSink{log: logger, store: store}
	registry.SetEmitter(sink)

	engine := exchange.NewEngine()
	engine.SetState(store)
	engine.SetGateway(registry)
	engine.SetEmitter(sink)
	engine.SetRejectZeroOutput(cfg.RejectZeroOutput)

	if err := bootstrap(cfg, store, registry); err != nil {
		log.Fatalf("burnswapd: bootstrap: %v", err)
	}

	server := rpc.New(rpc.Config{
		Engine:  engine,
		Events:  store,
		Logger:  logger,
		Metrics: metrics.Exchange(),
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go snapshotLoop(ctx, logger, registry, store)

	go func() {
		logger.Info("listening", "address", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("serve http", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown http", "error", err)
	}
	persistLedger(logger, registry, store)
}

// buildRegistry restores persisted token ledgers, creating empty ones for the
// configured pair on first boot.
func buildRegistry(cfg *config.Config, store *storage.Store) (*token.Registry, error) {
	registry := token.NewRegistry()
	snaps, err := store.Tokens()
	if err != nil {
		return nil, err
	}
	restored := make(map[string]bool, len(snaps))
	for _, snap := range snaps {
		t, err := token.RestoreToken(snap)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(t); err != nil {
			return nil, err
		}
		restored[t.Symbol()] = true
	}
	for _, tc := range []config.TokenConfig{cfg.SourceToken, cfg.TargetToken} {
		symbol := token.NormalizeSymbol(tc.Symbol)
		if restored[symbol] {
			continue
		}
		t, err := token.NewToken(symbol, tc.Decimals)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// bootstrap writes the initial exchange configuration and mints the initial
// reserve on first boot; subsequent boots keep the persisted state.
func bootstrap(cfg *config.Config, store *storage.Store, registry *token.Registry) error {
	_, err := store.ExchangeConfig()
	if err == nil {
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	admin, err := cfg.Admin()
	if err != nil {
		return err
	}
	ratio, err := cfg.Ratio()
	if err != nil {
		return err
	}
	lock, err := cfg.Lock()
	if err != nil {
		return err
	}
	initial, err := exchange.NewConfig(cfg.SourceToken.Symbol, cfg.TargetToken.Symbol, ratio, lock, admin, time.Now().Unix())
	if err != nil {
		return err
	}
	if err := store.PutExchangeConfig(initial); err != nil {
		return err
	}
	reserve, err := cfg.Reserve()
	if err != nil {
		return err
	}
	if reserve.Sign() > 0 {
		if err := registry.Mint(initial.TargetToken, exchange.ModuleAddress(), reserve); err != nil {
			return err
		}
	}
	return persistTokens(registry, store)
}

func snapshotLoop(ctx context.Context, logger *slog.Logger, registry *token.Registry, store *storage.Store) {
	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			persistLedger(logger, registry, store)
		}
	}
}

func persistLedger(logger *slog.Logger, registry *token.Registry, store *storage.Store) {
	if err := persistTokens(registry, store); err != nil {
		logger.Error("persist ledger", "error", err)
	}
}

func persistTokens(registry *token.Registry, store *storage.Store) error {
	for _, symbol := range registry.Symbols() {
		t, err := registry.Get(symbol)
		if err != nil {
			return err
		}
		if err := store.SaveToken(t.Snapshot()); err != nil {
			return err
		}
	}
	return nil
}

// eventSink fans emitted events out to the structured log and the persistent
// event log.
type eventSink struct {
	log   *slog.Logger
	store *storage.Store
}

func (s *eventSink) Emit(ev events.Event) {
	rec, ok := ev.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	evt := rec.Event()
	if evt == nil {
		return
	}
	if err := s.store.AppendEvent(evt); err != nil {
		s.log.Error("append event", "type", evt.Type, "error", err)
	}
	attrs := make([]any, 0, len(evt.Attributes)*2+2)
	attrs = append(attrs, "type", evt.Type)
	for key, value := range evt.Attributes {
		attrs = append(attrs, key, value)
	}
	s.log.Info("event", attrs...)
}
