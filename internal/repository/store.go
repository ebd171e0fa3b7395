package repository

import (
	"context"
	"database/sql"

	"gorm.io/gorm"

	"github.com/iliyamo/tradeflow/internal/model"
)

// Store groups the repositories bound to one database handle. The root
// Store is bound to the connection pool; the Store handed to a Transaction
// callback is bound to that transaction, so every repository call made
// through it commits or rolls back together.
type Store struct {
	db     *gorm.DB
	txOpts *sql.TxOptions

	Users        *UserRepo
	Jobs         *JobRepo
	Participants *ParticipantRepo
	Tasks        *TaskRepo
	Tokens       *TokenRepo
}

// Option configures a Store.
type Option func(*Store)

// WithIsolation sets the isolation level used by Transaction.
func WithIsolation(level sql.IsolationLevel) Option {
	return func(s *Store) { s.txOpts = &sql.TxOptions{Isolation: level} }
}

// NewStore returns a Store bound to db.
func NewStore(db *gorm.DB, opts ...Option) *Store {
	s := bind(db)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func bind(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Users:        NewUserRepo(db),
		Jobs:         NewJobRepo(db),
		Participants: NewParticipantRepo(db),
		Tasks:        NewTaskRepo(db),
		Tokens:       NewTokenRepo(db),
	}
}

// Transaction runs fn inside a single database transaction. A non-nil
// return from fn, a panic or a cancelled ctx rolls back every write made
// through the tx Store. The tx Store must not escape fn.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	run := func(gtx *gorm.DB) error {
		tx := bind(gtx)
		tx.txOpts = s.txOpts
		return fn(tx)
	}
	if s.txOpts != nil {
		return s.db.WithContext(ctx).Transaction(run, s.txOpts)
	}
	return s.db.WithContext(ctx).Transaction(run)
}

// Migrate creates or updates the tables for every entity.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(models()...)
}

func models() []any {
	return []any{
		&model.User{},
		&model.Job{},
		&model.JobParticipant{},
		&model.Task{},
		&model.RefreshToken{},
	}
}

// Ping checks that the underlying connection is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
