package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xela07ax/expenseflow-prototype/internal/infra"
	"github.com/xela07ax/expenseflow-prototype/internal/workflow"
)

// Store — корневой доступ к PostgreSQL поверх pgxpool.
// Реализует workflow.Store: движок получает транзакции через WithinTx,
// читающие методы для API работают напрямую через пул.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, cfg infra.DatabaseConfig) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping проверяет доступность базы при старте
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

// WithinTx исполняет fn внутри одной транзакции.
// Row-level lock на расход берется внутри fn через GetExpenseForUpdate;
// crash между шагами откатывает все разом — статус и журнал не разъезжаются.
func (s *Store) WithinTx(ctx context.Context, fn func(tx workflow.Tx) error) error {
	pgTx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer pgTx.Rollback(ctx) // no-op после успешного Commit

	if err := fn(&LedgerTx{tx: pgTx}); err != nil {
		return err
	}

	if err := pgTx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit tx: %w", err)
	}
	return nil
}
