package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ak-softwares/wa-api-sub002/internal/config"
	loggerPkg "github.com/ak-softwares/wa-api-sub002/internal/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"
	"github.com/rs/zerolog"
)

type Database struct {
	Pool *pgxpool.Pool
}

func New(cfg *config.Config, log *zerolog.Logger, ls *loggerPkg.LoggerService) (*Database, error) {
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Name,
		cfg.Database.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.Database.MaxIdleConns)
	poolConfig.MaxConnLifetime = time.Duration(cfg.Database.ConnMaxLifetime) * time.Second
	poolConfig.MaxConnIdleTime = time.Duration(cfg.Database.ConnMaxIdleTime) * time.Second

	// Query logging through zerolog; debug level only makes noise in development
	if !cfg.Observability.IsProduction() {
		pgxLog := loggerPkg.NewPgxLogger(zerolog.DebugLevel)
		poolConfig.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   pgxTraceAdapter{log: &pgxLog},
			LogLevel: tracelog.LogLevelDebug,
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().
		Str("host", cfg.Database.Host).
		Str("database", cfg.Database.Name).
		Msg("Connected to PostgreSQL successfully")

	return &Database{Pool: pool}, nil
}

func (d *Database) Ping(ctx context.Context) error {
	return d.Pool.Ping(ctx)
}

func (d *Database) Close() {
	d.Pool.Close()
}

// pgxTraceAdapter bridges pgx tracelog records into zerolog.
type pgxTraceAdapter struct {
	log *zerolog.Logger
}

func (a pgxTraceAdapter) Log(ctx context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	var event *zerolog.Event
	switch level {
	case tracelog.LogLevelError:
		event = a.log.Error()
	case tracelog.LogLevelWarn:
		event = a.log.Warn()
	case tracelog.LogLevelInfo:
		event = a.log.Info()
	default:
		event = a.log.Debug()
	}
	for k, v := range data {
		event = event.Interface(k, v)
	}
	event.Msg(msg)
}
