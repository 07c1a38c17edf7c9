//go:build wireinject

package main

import (
	"context"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ipmarket-server/internal/config"
	"ipmarket-server/internal/domain/chat"
	"ipmarket-server/internal/domain/escrow"
	"ipmarket-server/internal/domain/market"
	"ipmarket-server/internal/domain/negotiation"
	"ipmarket-server/internal/domain/wallet"
	"ipmarket-server/internal/infrastructure/auth"
	"ipmarket-server/internal/infrastructure/chain"
	"ipmarket-server/internal/infrastructure/database"
	"ipmarket-server/internal/infrastructure/logger"
	"ipmarket-server/internal/infrastructure/pinning"
	chatrepo "ipmarket-server/internal/infrastructure/repository/chat"
	negotiationrepo "ipmarket-server/internal/infrastructure/repository/negotiation"
	"ipmarket-server/internal/interfaces/httpserver"
	"ipmarket-server/internal/notify"
	"ipmarket-server/internal/realtime"
)

var storeSet = wire.NewSet(
	chatrepo.NewRoomRepository,
	wire.Bind(new(chat.RoomRepository), new(*chatrepo.RoomRepository)),
	chatrepo.NewMessageRepository,
	wire.Bind(new(chat.MessageRepository), new(*chatrepo.MessageRepository)),
	negotiationrepo.NewPostgresRepository,
	wire.Bind(new(negotiation.Repository), new(*negotiationrepo.PostgresRepository)),
)

var chainSet = wire.NewSet(
	wire.Bind(new(wallet.BalanceReader), new(*chain.Client)),
	newSessionStore,
	wire.Bind(new(wallet.Store), new(*chain.SessionStore)),
	newEscrowContract,
	wire.Bind(new(escrow.DealContract), new(*chain.Escrow)),
	newMarketplaceContract,
	wire.Bind(new(market.MarketplaceContract), new(*chain.Marketplace)),
	newAuctionContract,
	wire.Bind(new(market.AuctionContract), new(*chain.Auction)),
	newLotteryContract,
	wire.Bind(new(market.LotteryContract), new(*chain.Lottery)),
	newOriginContract,
	wire.Bind(new(market.OriginContract), new(*chain.Origin)),
)

var domainSet = wire.NewSet(
	chat.NewService,
	wire.Bind(new(chat.Service), new(*chat.DefaultService)),
	negotiation.NewService,
	wire.Bind(new(negotiation.Service), new(*negotiation.DefaultService)),
	newWebhookService,
	wire.Bind(new(escrow.Notifier), new(*notify.HTTPService)),
	escrow.NewOrchestrator,
	pinning.NewClient,
	wire.Bind(new(market.Pinner), new(*pinning.Client)),
	market.NewService,
	wire.Bind(new(market.Service), new(*market.DefaultService)),
)

// BuildApplication demonstrates how to assemble the marketplace server with Wire.
func BuildApplication(ctx context.Context) (*Application, error) {
	wire.Build(
		config.Load,
		logger.New,
		newDatabaseConfig,
		newGormDB,
		newAuthValidator,
		newRedisClient,
		chain.Dial,
		realtime.NewHub,
		realtime.NewBus,
		wire.Bind(new(chat.EventPublisher), new(*realtime.Bus)),
		storeSet,
		chainSet,
		domainSet,
		httpserver.New,
		NewApplication,
	)
	return nil, nil
}

func newDatabaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		DSN:             cfg.DatabaseURL,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		ConnMaxLifetime: cfg.DBConnLifetime,
		LogLevel:        gormlogger.Warn,
	}
}

func newGormDB(ctx context.Context, cfg database.Config, log zerolog.Logger) (*gorm.DB, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.AutoMigrate(ctx, db, log); err != nil {
		return nil, err
	}
	return db, nil
}

func newAuthValidator(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*auth.Validator, error) {
	return auth.NewValidator(ctx, cfg, log)
}

func newRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rdb, nil
}

func newSessionStore(cfg *config.Config, client *chain.Client) (*chain.SessionStore, error) {
	return chain.NewSessionStore(cfg.WalletKeys, client.ChainID())
}

func newEscrowContract(cfg *config.Config, client *chain.Client) (*chain.Escrow, error) {
	return chain.NewEscrow(client, cfg.EscrowAddr)
}

func newMarketplaceContract(cfg *config.Config, client *chain.Client) (*chain.Marketplace, error) {
	return chain.NewMarketplace(client, cfg.MarketplaceAddr)
}

func newAuctionContract(cfg *config.Config, client *chain.Client) (*chain.Auction, error) {
	return chain.NewAuction(client, cfg.AuctionAddr)
}

func newLotteryContract(cfg *config.Config, client *chain.Client) (*chain.Lottery, error) {
	return chain.NewLottery(client, cfg.LotteryAddr)
}

func newOriginContract(cfg *config.Config, client *chain.Client) (*chain.Origin, error) {
	return chain.NewOrigin(client, cfg.OriginNFTAddr)
}

func newWebhookService(cfg *config.Config, log zerolog.Logger) *notify.HTTPService {
	return notify.NewHTTPService(cfg.NotifyWebhookURL, log)
}
