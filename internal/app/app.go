// Package app wires configuration into stores, delivery channels and
// services. Both binaries build their dependency graph through it.
package app

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"onrent-backend/internal/cache"
	"onrent-backend/internal/config"
	"onrent-backend/internal/logger"
	"onrent-backend/internal/notification"
	"onrent-backend/internal/repository"
	"onrent-backend/internal/repository/memory"
	"onrent-backend/internal/repository/postgres"
	"onrent-backend/internal/service"
)

type Services struct {
	Rental        service.RentalService
	Availability  service.AvailabilityService
	Fitting       service.FittingService
	Notification  service.NotificationService
	Notifications *notification.Queue
}

// OpenStore returns the unit of work selected by database.driver. The close
// func releases the connection pool and is safe to call for the memory driver.
func OpenStore(ctx context.Context, cfg *config.Config) (repository.Transactor, func() error, error) {
	if cfg.Database.Driver == config.DriverMemory {
		store := memory.NewStore(cfg.TxTimeout())
		if cfg.Database.SeedFile != "" {
			if err := store.LoadSeed(cfg.Database.SeedFile); err != nil {
				return nil, nil, fmt.Errorf("load seed: %w", err)
			}
			logger.Info("Memory store seeded", "file", cfg.Database.SeedFile)
		}
		logger.Warn("Using in-memory store; data is lost on restart")
		return store, func() error { return nil }, nil
	}

	logger.Debug("Connecting to database...", "connection_string", fmt.Sprintf("%s@%s:%d/%s", cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database))
	db, err := sql.Open("postgres", cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxOpenConns / 2)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("Database connection established")

	if cfg.Database.MigrationsDir != "" {
		if err := postgres.Migrate(ctx, db, cfg.Database.MigrationsDir); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return postgres.NewStore(db, cfg.TxTimeout()), db.Close, nil
}

// NewSlotCache connects to Redis when configured. Without it, open-slot
// listings always hit the store.
func NewSlotCache(ctx context.Context, cfg *config.Config) (service.SlotCache, func() error) {
	if cfg.Redis.Addr == "" {
		logger.Info("Redis not configured; slot cache disabled")
		return nil, func() error { return nil }
	}
	c, err := cache.Connect(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.SlotCacheTTL())
	if err != nil {
		logger.Warn("Redis unavailable; slot cache disabled", "addr", cfg.Redis.Addr, "error", err)
		return nil, func() error { return nil }
	}
	logger.Info("Slot cache connected", "addr", cfg.Redis.Addr, "ttl", cfg.SlotCacheTTL())
	return c, c.Close
}

// NewNotificationQueue builds the async dispatcher with the in-app channel
// plus whichever external channels are enabled. The caller starts it.
func NewNotificationQueue(ctx context.Context, cfg *config.Config, repos *repository.Repos) (*notification.Queue, error) {
	channels := []notification.Channel{notification.NewInAppChannel(repos.Notifications)}

	nc := cfg.Notification
	if nc.EmailEnabled {
		channels = append(channels, notification.NewEmailChannel(repos.Users, nc.SendGridAPIKey, nc.FromEmail, nc.FromName))
		logger.Info("Email notifications enabled", "from", nc.FromEmail)
	}
	if nc.PushEnabled {
		push, err := notification.NewPushChannel(ctx, nc.FirebaseCredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("init push channel: %w", err)
		}
		channels = append(channels, push)
		logger.Info("Push notifications enabled")
	}
	return notification.NewQueue(channels, nc.Workers, nc.QueueSize, nc.MaxRetries), nil
}

func NewServices(cfg *config.Config, tx repository.Transactor, slotCache service.SlotCache, queue *notification.Queue) *Services {
	return &Services{
		Rental:        service.NewRentalService(tx, queue),
		Availability:  service.NewAvailabilityService(tx, slotCache, cfg.Booking.SlotHorizonDays),
		Fitting:       service.NewFittingService(tx, slotCache, queue),
		Notification:  service.NewNotificationService(tx.Repos().Notifications),
		Notifications: queue,
	}
}
