// Package source opens the bar source selected by configuration.
package source

import (
	"database/sql"
	"fmt"

	goredis "github.com/go-redis/redis/v8"

	"trading-signals/config"
	"trading-signals/internal/barfile"
	"trading-signals/internal/model"
	redisstore "trading-signals/internal/store/redis"
	sqlitestore "trading-signals/internal/store/sqlite"
)

// Store is a bar source that can also ingest bars.
type Store interface {
	model.BarSource
	model.BarWriter
}

// Opened is an open bar store plus the raw handles used for health checks.
// At most one of SQL and Redis is set.
type Opened struct {
	Store Store
	SQL   *sql.DB
	Redis *goredis.Client
}

// Open connects to the store named by cfg.Source.
func Open(cfg *config.Config) (*Opened, error) {
	switch cfg.Source {
	case config.SourceFile:
		d, err := barfile.NewDir(cfg.BarsDir, barfile.FormatParquet)
		if err != nil {
			return nil, err
		}
		return &Opened{Store: d}, nil
	case config.SourceSQLite:
		s, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &Opened{Store: s, SQL: s.DB()}, nil
	case config.SourceRedis:
		c, err := redisstore.New(redisstore.Config{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		if err != nil {
			return nil, err
		}
		return &Opened{Store: c, Redis: c.Client()}, nil
	}
	return nil, fmt.Errorf("unknown SOURCE %q (want %s, %s or %s)", cfg.Source, config.SourceFile, config.SourceSQLite, config.SourceRedis)
}
