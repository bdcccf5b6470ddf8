package storage

import (
	"chatrelay/backend/internal/config"
	"chatrelay/backend/internal/logger"
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open connects the durable store selected by cfg.Driver and prepares its schema.
// The returned func releases the connection.
func Open(ctx context.Context, cfg config.StoreConfig) (Storage, func() error, error) {
	switch cfg.Driver {
	case config.DriverMongo:
		svc, err := NewMongoService(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		if err := svc.EnsureIndexes(ctx); err != nil {
			_ = svc.Close(context.Background())
			return nil, nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		logger.Info("connected to MongoDB", zap.String("database", cfg.MongoDatabase))
		return svc, func() error { return svc.Close(context.Background()) }, nil

	case config.DriverPostgres:
		db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
			TranslateError: true,
			Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		svc := NewStorageService(db)
		if err := svc.Migrate(); err != nil {
			return nil, nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("connected to PostgreSQL, migrations complete")

		closeFn := func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		}
		return svc, closeFn, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// OpenRedis connects to Redis and checks the connection.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
