package repository

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookswap/exchange-service/internal/errs"
	"github.com/bookswap/exchange-service/internal/model"
)

var exchangeColumns = []string{
	"id", "exchange_uid", "sender_id", "receiver_id",
	"offered_book_uid", "requested_book_uid", "status", "created_at",
}

func (r *repository) CreateExchange(ctx context.Context, req model.CreateExchangeRequest) (model.Exchange, error) {
	q, args, err := qb.Insert(exchangesTableName).
		Columns("exchange_uid", "sender_id", "receiver_id", "offered_book_uid", "requested_book_uid", "status", "created_at").
		Values(uuid.New(), req.SenderID, req.ReceiverID, req.OfferedBookUid, req.RequestedBookUid,
			model.ExchangePending, time.Now().UTC()).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Exchange{}, err
	}

	var ex model.Exchange
	if err := sqlx.GetContext(ctx, r.ext, &ex, q, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			// the partial unique index on pending tuples closes the
			// check-then-insert race between concurrent proposers
			return model.Exchange{}, errs.ErrDuplicateExchange
		}
		r.log.Error("CreateExchange", zap.String("q", q), zap.Any("args", args), zap.Error(err))
		return model.Exchange{}, err
	}
	return ex, nil
}

func (r *repository) GetExchange(ctx context.Context, exchangeUid string) (model.Exchange, error) {
	return r.getExchange(ctx, exchangeUid, false)
}

// GetExchangeForUpdate locks the exchange row so that concurrent resolutions
// of the same proposal serialize on it.
func (r *repository) GetExchangeForUpdate(ctx context.Context, exchangeUid string) (model.Exchange, error) {
	return r.getExchange(ctx, exchangeUid, true)
}

func (r *repository) getExchange(ctx context.Context, exchangeUid string, lock bool) (model.Exchange, error) {
	b := qb.Select(exchangeColumns...).
		From(exchangesTableName).
		Where(sq.Eq{"exchange_uid": exchangeUid})
	if lock {
		b = b.Suffix("for update")
	}
	q, args, err := b.ToSql()
	if err != nil {
		return model.Exchange{}, err
	}

	var ex model.Exchange
	if err := sqlx.GetContext(ctx, r.ext, &ex, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Exchange{}, errs.ErrNotFound
		}
		return model.Exchange{}, err
	}
	return ex, nil
}

func (r *repository) UpdateExchangeStatus(ctx context.Context, exchangeUid string, status model.ExchangeStatus) error {
	q := `update exchanges set status = $2 where exchange_uid = $1`
	res, err := r.ext.ExecContext(ctx, q, exchangeUid, status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound
	}
	return nil
}

func (r *repository) FindPendingDuplicate(ctx context.Context, req model.CreateExchangeRequest) (bool, error) {
	q, args, err := qb.Select("1").
		From(exchangesTableName).
		Where(sq.Eq{
			"sender_id":          req.SenderID,
			"receiver_id":        req.ReceiverID,
			"offered_book_uid":   req.OfferedBookUid,
			"requested_book_uid": req.RequestedBookUid,
			"status":             model.ExchangePending,
		}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, err
	}

	var one int
	if err := sqlx.GetContext(ctx, r.ext, &one, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *repository) ListExchanges(ctx context.Context) ([]model.Exchange, error) {
	return r.listExchanges(ctx, nil)
}

func (r *repository) ListSent(ctx context.Context, userID int) ([]model.Exchange, error) {
	return r.listExchanges(ctx, sq.Eq{"sender_id": userID})
}

func (r *repository) ListReceived(ctx context.Context, userID int) ([]model.Exchange, error) {
	return r.listExchanges(ctx, sq.Eq{"receiver_id": userID})
}

func (r *repository) listExchanges(ctx context.Context, where sq.Eq) ([]model.Exchange, error) {
	b := qb.Select(exchangeColumns...).
		From(exchangesTableName).
		OrderBy("id")
	if where != nil {
		b = b.Where(where)
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	var items []model.Exchange
	if err := sqlx.SelectContext(ctx, r.ext, &items, q, args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) ListIncoming(ctx context.Context, userID int) ([]model.ExchangeSummary, error) {
	return r.listSummaries(ctx, "receiver_id", "sender_id", userID)
}

func (r *repository) ListOutgoing(ctx context.Context, userID int) ([]model.ExchangeSummary, error) {
	return r.listSummaries(ctx, "sender_id", "receiver_id", userID)
}

func (r *repository) listSummaries(ctx context.Context, partyCol, counterpartCol string, userID int) ([]model.ExchangeSummary, error) {
	q, args, err := qb.Select(
		"e.exchange_uid",
		"ob.title as offered_book_title",
		"rb.title as requested_book_title",
		"u.username as counterpart",
		"e.status",
	).
		From(exchangesTableName + " e").
		Join(booksTableName + " ob on ob.book_uid = e.offered_book_uid").
		Join(booksTableName + " rb on rb.book_uid = e.requested_book_uid").
		Join(usersTableName + " u on u.id = e." + counterpartCol).
		Where(sq.Eq{"e." + partyCol: userID}).
		OrderBy("e.id").
		ToSql()
	if err != nil {
		return nil, err
	}

	var items []model.ExchangeSummary
	if err := sqlx.SelectContext(ctx, r.ext, &items, q, args...); err != nil {
		r.log.Error("listSummaries", zap.String("q", q), zap.Any("args", args), zap.Error(err))
		return nil, err
	}
	return items, nil
}
