// Package core provides resources of leetsync daemon.
package core

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"sync"

	"github.com/labstack/gommon/log"

	"github.com/leetsync/leetsync/internal/config"
	"github.com/leetsync/leetsync/internal/db"
	"github.com/leetsync/leetsync/internal/models"
	"github.com/leetsync/leetsync/internal/pkg/logs"
)

// Core manages all available resources.
type Core struct {
	// Config contains config.
	Config config.Config
	// Settings contains setting store.
	Settings *models.SettingStore
	// Commits contains queued commit store.
	Commits *models.CommitStore
	// ProcessedSubmissions contains processed submission store.
	ProcessedSubmissions *models.ProcessedSubmissionStore
	//
	context context.Context
	cancel  context.CancelFunc
	waiter  sync.WaitGroup
	// DB stores database connection.
	DB *db.DB
	// logger contains logger.
	logger *logs.Logger
}

// NewCore creates core instance from config.
func NewCore(cfg config.Config) (*Core, error) {
	conn, err := cfg.DB.Create()
	if err != nil {
		return nil, err
	}
	logger := logs.NewLogger()
	logger.SetLevel(log.Lvl(cfg.LogLevel))
	return &Core{Config: cfg, DB: conn, logger: logger}, nil
}

// Logger returns logger instance.
func (c *Core) Logger() *logs.Logger {
	return c.logger
}

// SetupAllStores prepares all stores.
func (c *Core) SetupAllStores() {
	c.Settings = models.NewSettingStore(c.DB, "leetsync_setting")
	c.Commits = models.NewCommitStore(c.DB, "leetsync_commit")
	c.ProcessedSubmissions = models.NewProcessedSubmissionStore(
		c.DB, "leetsync_processed_submission",
	)
}

func (c *Core) stores() []models.CachedStore {
	return []models.CachedStore{
		c.Settings,
		c.Commits,
		c.ProcessedSubmissions,
	}
}

// Start starts application and loads stores.
func (c *Core) Start() error {
	if c.cancel != nil {
		return fmt.Errorf("core already started")
	}
	c.Logger().Debug("Starting core")
	c.context, c.cancel = context.WithCancel(context.Background())
	for _, store := range c.stores() {
		v := reflect.ValueOf(store)
		if store == nil || (v.Kind() == reflect.Ptr && v.IsNil()) {
			continue
		}
		if err := store.Init(c.context); err != nil {
			c.Stop()
			return err
		}
	}
	if c.Commits != nil {
		// Running status is not durable between daemon restarts.
		if err := c.Commits.ResetRunning(c.context); err != nil {
			c.Stop()
			return err
		}
	}
	c.Logger().Debug("Core started")
	return nil
}

// Stop stops core tasks.
func (c *Core) Stop() {
	if c.cancel == nil {
		return
	}
	c.Logger().Debug("Stopping core")
	defer c.Logger().Debug("Core stopped")
	c.cancel()
	c.waiter.Wait()
	c.context, c.cancel = nil, nil
}

// Context returns core context.
func (c *Core) Context() context.Context {
	return c.context
}

// WrapTx runs function with transaction.
func (c *Core) WrapTx(
	ctx context.Context, fn func(ctx context.Context) error,
	options ...db.TxOption,
) error {
	return db.WrapTx(ctx, c.DB, func(tx *sql.Tx) error {
		return fn(db.WithTx(ctx, tx))
	}, options...)
}

// StartTask starts task in new goroutine.
func (c *Core) StartTask(name string, task func(ctx context.Context)) {
	c.Logger().Info("Start task", logs.Any("task", name))
	c.waiter.Add(1)
	go func() {
		defer c.waiter.Done()
		defer c.Logger().Info("Task finished", logs.Any("task", name))
		task(c.context)
	}()
}

// GetSettingValue returns value of setting with specified key.
func (c *Core) GetSettingValue(key string) (string, error) {
	setting, err := c.Settings.GetByKey(key)
	if err != nil {
		return "", err
	}
	return setting.Value, nil
}
