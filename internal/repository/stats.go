package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/bookswap/exchange-service/internal/model"
)

func (r *repository) CountUsers(ctx context.Context) (int, error) {
	return r.countRows(ctx, usersTableName)
}

func (r *repository) CountBooks(ctx context.Context) (int, error) {
	return r.countRows(ctx, booksTableName)
}

func (r *repository) CountExchanges(ctx context.Context) (int, error) {
	return r.countRows(ctx, exchangesTableName)
}

func (r *repository) countRows(ctx context.Context, table string) (int, error) {
	var count int
	q := fmt.Sprintf(`select count(*) from %s`, table)
	if err := sqlx.GetContext(ctx, r.ext, &count, q); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) InsertEvent(ctx context.Context, event model.ExchangeEvent) error {
	q := `insert into events (exchange_uid, event_type, sender_id, receiver_id, timestamp)
	values (:exchange_uid, :event_type, :sender_id, :receiver_id, :timestamp)`
	_, err := sqlx.NamedExecContext(ctx, r.ext, q, event)
	return err
}

func (r *repository) ListRecentEvents(ctx context.Context, limit int) ([]model.ExchangeEvent, error) {
	q := fmt.Sprintf(`select exchange_uid, event_type, sender_id, receiver_id, timestamp
	from %s order by id desc limit $1`, eventsTableName)

	var events []model.ExchangeEvent
	if err := sqlx.SelectContext(ctx, r.ext, &events, q, limit); err != nil {
		return nil, err
	}
	return events, nil
}
