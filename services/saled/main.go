package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"lavasale/config"
	"lavasale/core/events"
	"lavasale/native/sale"
	"lavasale/observability/logging"
	telemetry "lavasale/observability/otel"
	saledconfig "lavasale/services/saled/config"
	"lavasale/services/saled/oracle"
	"lavasale/services/saled/server"
	saledstorage "lavasale/services/saled/storage"
	"lavasale/storage"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/saled/config.yaml", "path to saled configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LAVA_ENV"))
	logger := logging.Setup("saled", env)

	otlpEndpoint := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"))
	otlpHeaders := telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	insecure := true
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "saled",
		Environment: env,
		Endpoint:    otlpEndpoint,
		Insecure:    insecure,
		Headers:     otlpHeaders,
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := saledconfig.Load(cfgPath)
	if err != nil {
		log.Fatalf("saled: load config: %v", err)
	}

	genesis, err := config.Load(cfg.GenesisPath)
	if err != nil {
		log.Fatalf("saled: load genesis: %v", err)
	}
	params, err := genesis.Params()
	if err != nil {
		log.Fatalf("saled: genesis params: %v", err)
	}
	treasury, err := genesis.TreasuryAddress()
	if err != nil {
		log.Fatalf("saled: genesis treasury: %v", err)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		log.Fatalf("saled: open state database: %v", err)
	}
	defer db.Close()
	state := sale.NewState(storage.NewKVStore(db))

	dsn, err := saledstorage.FileDSN(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("saled: resolve archive DSN: %v", err)
	}
	archive, err := saledstorage.Open(dsn)
	if err != nil {
		log.Fatalf("saled: open archive: %v", err)
	}
	defer archive.Close()

	client := &http.Client{Timeout: 10 * time.Second}
	sources := make([]oracle.Source, 0, len(cfg.Oracle.Sources))
	for _, src := range cfg.Oracle.Sources {
		built, err := oracle.BuildSource(client, src.Name, src.Type, src.Endpoint, src.APIKey, src.Assets)
		if err != nil {
			log.Fatalf("saled: build source %s: %v", src.Name, err)
		}
		sources = append(sources, built)
	}
	pairs := []oracle.Pair{{Base: params.NativeSymbol, Quote: params.QuoteSymbol}}
	mgr, err := oracle.New(sources, pairs, cfg.Oracle.Interval.Duration, cfg.Oracle.MaxAge.Duration,
		oracle.WithArchive(archive), oracle.WithLogger(logger))
	if err != nil {
		log.Fatalf("saled: oracle manager: %v", err)
	}

	engine := sale.NewEngine(state, params)
	engine.SetOracle(mgr)
	engine.SetPayments(sale.NewStatePayments(state))
	engine.SetEmitter(events.EmitterFunc(func(evt events.Event) {
		logger.Info("sale event", "type", evt.EventType())
	}))

	if _, err := engine.Initialize(params.Operator, treasury, genesis.FirstRoundData()); err != nil {
		if !errors.Is(err, sale.ErrAlreadyInitialized) {
			log.Fatalf("saled: initialize sale: %v", err)
		}
		logger.Info("sale already initialised, resuming")
	} else {
		logger.Info("sale initialised", "first_round_price", genesis.FirstRound.PriceUSD)
	}

	secret := strings.TrimSpace(os.Getenv(cfg.Admin.JWTSecretEnv))
	if secret == "" {
		log.Fatalf("saled: admin JWT secret missing, set %s", cfg.Admin.JWTSecretEnv)
	}
	auth, err := server.NewAuthenticator([]byte(secret), cfg.Admin.Issuer, cfg.Admin.Audience, cfg.Admin.Subject)
	if err != nil {
		log.Fatalf("saled: configure admin auth: %v", err)
	}
	limiter := server.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)

	srv, err := server.New(server.Config{ListenAddress: cfg.ListenAddress}, engine, mgr, archive, auth, limiter, logger)
	if err != nil {
		log.Fatalf("saled: server: %v", err)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := mgr.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("oracle manager exited", "err", err)
			stop()
		}
	}()

	if err := srv.Run(rootCtx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("http server error", "err", err)
		os.Exit(1)
	}
}
