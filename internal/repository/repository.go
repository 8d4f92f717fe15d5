package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookswap/exchange-service/internal/model"
)

type BookRepo interface {
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	GetBook(ctx context.Context, bookUid string) (model.Book, error)
	GetBookForUpdate(ctx context.Context, bookUid string) (model.Book, error)
	ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error)
	UpdateBook(ctx context.Context, bookUid string, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, bookUid string) error
	SetOwnerAndStatus(ctx context.Context, bookUid string, ownerID int, status model.BookStatus) error
}

type ExchangeRepo interface {
	CreateExchange(ctx context.Context, req model.CreateExchangeRequest) (model.Exchange, error)
	GetExchange(ctx context.Context, exchangeUid string) (model.Exchange, error)
	GetExchangeForUpdate(ctx context.Context, exchangeUid string) (model.Exchange, error)
	UpdateExchangeStatus(ctx context.Context, exchangeUid string, status model.ExchangeStatus) error
	FindPendingDuplicate(ctx context.Context, req model.CreateExchangeRequest) (bool, error)
	ListExchanges(ctx context.Context) ([]model.Exchange, error)
	ListSent(ctx context.Context, userID int) ([]model.Exchange, error)
	ListReceived(ctx context.Context, userID int) ([]model.Exchange, error)
	ListIncoming(ctx context.Context, userID int) ([]model.ExchangeSummary, error)
	ListOutgoing(ctx context.Context, userID int) ([]model.ExchangeSummary, error)
}

type UserRepo interface {
	CreateUser(ctx context.Context, user model.User) (model.User, error)
	GetUser(ctx context.Context, id int) (model.User, error)
	GetUserByUsername(ctx context.Context, username string) (model.User, error)
	UpdateUser(ctx context.Context, id int, username, email, passwordHash *string) (model.User, error)
	DeleteUser(ctx context.Context, id int) error
	ListUsers(ctx context.Context) ([]model.User, error)
}

type StatsRepo interface {
	CountUsers(ctx context.Context) (int, error)
	CountBooks(ctx context.Context) (int, error)
	CountExchanges(ctx context.Context) (int, error)
	InsertEvent(ctx context.Context, event model.ExchangeEvent) error
	ListRecentEvents(ctx context.Context, limit int) ([]model.ExchangeEvent, error)
}

// TxRepository is the slice of the repository the exchange engine touches
// inside one resolution transaction: the row-locking reads plus the three
// status/ownership writes.
type TxRepository interface {
	GetBookForUpdate(ctx context.Context, bookUid string) (model.Book, error)
	SetOwnerAndStatus(ctx context.Context, bookUid string, ownerID int, status model.BookStatus) error
	GetExchangeForUpdate(ctx context.Context, exchangeUid string) (model.Exchange, error)
	UpdateExchangeStatus(ctx context.Context, exchangeUid string, status model.ExchangeStatus) error
}

type Repository interface {
	BookRepo
	ExchangeRepo
	UserRepo
	StatsRepo

	// WithinTx runs fn against a transaction-bound view of the repository
	// and commits, or rolls everything back when fn fails.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error
}

type repository struct {
	db  *sqlx.DB
	ext sqlx.ExtContext
	log *zap.Logger
}

func NewRepository(db *sqlx.DB, log *zap.Logger) (*repository, error) {
	return &repository{
		db:  db,
		ext: db,
		log: log.Named("repo"),
	}, nil
}

const (
	usersTableName     = `users`
	booksTableName     = `books`
	exchangesTableName = `exchanges`
	eventsTableName    = `events`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) WithinTx(ctx context.Context, fn func(ctx context.Context, tx TxRepository) error) error {
	if _, ok := r.ext.(*sqlx.Tx); ok {
		// already transaction-bound, reuse the scope
		return fn(ctx, r)
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	txRepo := &repository{db: r.db, ext: tx, log: r.log}
	if err := fn(ctx, txRepo); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Error("tx rollback", zap.Error(rbErr))
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}
