package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"ipmarket-server/internal/config"
	"ipmarket-server/internal/domain/chat"
	"ipmarket-server/internal/domain/escrow"
	"ipmarket-server/internal/domain/market"
	"ipmarket-server/internal/domain/negotiation"
	"ipmarket-server/internal/infrastructure/auth"
	"ipmarket-server/internal/infrastructure/chain"
	"ipmarket-server/internal/infrastructure/database"
	"ipmarket-server/internal/infrastructure/logger"
	"ipmarket-server/internal/infrastructure/observability"
	"ipmarket-server/internal/infrastructure/pinning"
	chatrepo "ipmarket-server/internal/infrastructure/repository/chat"
	negotiationrepo "ipmarket-server/internal/infrastructure/repository/negotiation"
	"ipmarket-server/internal/interfaces/httpserver"
	"ipmarket-server/internal/notify"
	"ipmarket-server/internal/realtime"
	"ipmarket-server/internal/worker"
)

// Application bundles the long-running pieces of the marketplace server.
type Application struct {
	httpServer *httpserver.HttpServer
	log        zerolog.Logger
}

// NewApplication constructs the application shell.
func NewApplication(httpServer *httpserver.HttpServer, log zerolog.Logger) *Application {
	return &Application{
		httpServer: httpServer,
		log:        log,
	}
}

// Start blocks until the HTTP server stops.
func (a *Application) Start(ctx context.Context) error {
	return a.httpServer.Run(ctx)
}

func main() {
	loadEnvFiles()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := observability.Setup(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize observability")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown telemetry")
		}
	}()

	db, err := database.Connect(database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}

	if err := database.AutoMigrate(ctx, db, log); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	authValidator, err := auth.NewValidator(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("initialize auth validator")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal().Err(err).Msg("connect redis")
	}
	defer rdb.Close()

	chainClient, err := chain.Dial(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("connect chain rpc")
	}
	defer chainClient.Close()

	sessions, err := chain.NewSessionStore(cfg.WalletKeys, chainClient.ChainID())
	if err != nil {
		log.Fatal().Err(err).Msg("load wallet keys")
	}

	escrowContract, err := chain.NewEscrow(chainClient, cfg.EscrowAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("bind escrow contract")
	}
	marketplaceContract, err := chain.NewMarketplace(chainClient, cfg.MarketplaceAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("bind marketplace contract")
	}
	auctionContract, err := chain.NewAuction(chainClient, cfg.AuctionAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("bind auction contract")
	}
	lotteryContract, err := chain.NewLottery(chainClient, cfg.LotteryAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("bind lottery contract")
	}
	originContract, err := chain.NewOrigin(chainClient, cfg.OriginNFTAddr)
	if err != nil {
		log.Fatal().Err(err).Msg("bind origin nft contract")
	}

	hub := realtime.NewHub(log)
	bus := realtime.NewBus(rdb, hub, log)
	go hub.Run(ctx)
	go bus.Run(ctx)

	roomRepository := chatrepo.NewRoomRepository(db)
	messageRepository := chatrepo.NewMessageRepository(db)
	negotiationRepository := negotiationrepo.NewPostgresRepository(db)

	chatService := chat.NewService(roomRepository, messageRepository, bus, log)
	negotiationService := negotiation.NewService(negotiationRepository, chatService, log)

	webhookService := notify.NewHTTPService(cfg.NotifyWebhookURL, log)
	orchestrator := escrow.NewOrchestrator(escrowContract, chatService, sessions, webhookService, log)

	pinner := pinning.NewClient(cfg, log)
	marketService := market.NewService(
		marketplaceContract,
		auctionContract,
		lotteryContract,
		originContract,
		pinner,
		sessions,
		log,
	)

	reconcilePool := worker.NewPool(
		chatService,
		orchestrator,
		worker.Config{
			WorkerCount:   cfg.ReconcileWorkerCount,
			SweepInterval: cfg.ReconcileInterval,
			TaskTimeout:   cfg.ReconcileTaskTimeout,
		},
		log,
	)
	if err := reconcilePool.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("start reconcile pool")
	}
	defer func() {
		log.Info().Msg("stopping reconcile pool")
		reconcilePool.Stop()
	}()

	httpServer := httpserver.New(cfg, log, negotiationService, chatService, orchestrator, marketService, chainClient, sessions, hub, authValidator)
	app := NewApplication(httpServer, log)

	if err := app.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("application stopped with error")
	}

	log.Info().Msg("application exited cleanly")
}

func loadEnvFiles() {
	paths := []string{".env", "../.env"}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Overload(path); err != nil {
				fmt.Fprintf(os.Stderr, "warning: failed to load %s: %v\n", path, err)
			}
		}
	}
}
