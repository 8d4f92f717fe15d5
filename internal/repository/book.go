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

var bookColumns = []string{
	"id", "book_uid", "title", "author", "genre", "description",
	"location", "status", "user_id", "created_at",
}

func (r *repository) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	q, args, err := qb.Insert(booksTableName).
		Columns("book_uid", "title", "author", "genre", "description", "location", "status", "user_id", "created_at").
		Values(uuid.New(), req.Title, req.Author, req.Genre, req.Description, req.Location,
			model.BookAvailable, req.OwnerID, time.Now().UTC()).
		Suffix("returning *").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := sqlx.GetContext(ctx, r.ext, &book, q, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
			return model.Book{}, errs.ErrNotFound
		}
		r.log.Error("CreateBook", zap.String("q", q), zap.Any("args", args), zap.Error(err))
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) GetBook(ctx context.Context, bookUid string) (model.Book, error) {
	return r.getBook(ctx, bookUid, false)
}

// GetBookForUpdate locks the book row for the duration of the surrounding
// transaction.
func (r *repository) GetBookForUpdate(ctx context.Context, bookUid string) (model.Book, error) {
	return r.getBook(ctx, bookUid, true)
}

func (r *repository) getBook(ctx context.Context, bookUid string, lock bool) (model.Book, error) {
	b := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"book_uid": bookUid})
	if lock {
		b = b.Suffix("for update")
	}
	q, args, err := b.ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := sqlx.GetContext(ctx, r.ext, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		return model.Book{}, err
	}
	return book, nil
}

func (r *repository) ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error) {
	b := qb.Select(bookColumns...).From(booksTableName)

	if filter.Title != "" {
		b = b.Where(sq.ILike{"title": "%" + filter.Title + "%"})
	}
	if filter.Author != "" {
		b = b.Where(sq.ILike{"author": "%" + filter.Author + "%"})
	}
	if filter.Genre != "" {
		b = b.Where(sq.ILike{"genre": "%" + filter.Genre + "%"})
	}
	if filter.Location != "" {
		b = b.Where(sq.ILike{"location": "%" + filter.Location + "%"})
	}
	if filter.Status != "" {
		b = b.Where(sq.Eq{"status": filter.Status})
	}
	switch filter.SortBy {
	case "created_at":
		b = b.OrderBy("created_at desc")
	case "title":
		b = b.OrderBy("title asc")
	}

	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	r.log.Debug("ListBooks", zap.String("q", q), zap.Any("args", args))

	var books []model.Book
	if err := sqlx.SelectContext(ctx, r.ext, &books, q, args...); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *repository) UpdateBook(ctx context.Context, bookUid string, req model.UpdateBookRequest) (model.Book, error) {
	b := qb.Update(booksTableName).
		Where(sq.Eq{"book_uid": bookUid}).
		Suffix("returning *")

	changed := false
	if req.Title != nil {
		b, changed = b.Set("title", *req.Title), true
	}
	if req.Author != nil {
		b, changed = b.Set("author", *req.Author), true
	}
	if req.Genre != nil {
		b, changed = b.Set("genre", *req.Genre), true
	}
	if req.Description != nil {
		b, changed = b.Set("description", *req.Description), true
	}
	if req.Location != nil {
		b, changed = b.Set("location", *req.Location), true
	}
	if req.Status != nil {
		b, changed = b.Set("status", *req.Status), true
	}
	if !changed {
		return r.GetBook(ctx, bookUid)
	}

	q, args, err := b.ToSql()
	if err != nil {
		return model.Book{}, err
	}

	var book model.Book
	if err := sqlx.GetContext(ctx, r.ext, &book, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Book{}, errs.ErrNotFound
		}
		r.log.Error("UpdateBook", zap.String("q", q), zap.Any("args", args), zap.Error(err))
		return model.Book{}, err
	}
	return book, nil
}

// DeleteBook removes the book together with every exchange that references
// it, in one transaction.
func (r *repository) DeleteBook(ctx context.Context, bookUid string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	q := `delete from exchanges where offered_book_uid = $1 or requested_book_uid = $1`
	if _, err := tx.ExecContext(ctx, q, bookUid); err != nil {
		return errors.Wrap(err, "purge exchanges")
	}

	res, err := tx.ExecContext(ctx, `delete from books where book_uid = $1`, bookUid)
	if err != nil {
		return errors.Wrap(err, "delete book")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound
	}
	return errors.Wrap(tx.Commit(), "commit tx")
}

func (r *repository) SetOwnerAndStatus(ctx context.Context, bookUid string, ownerID int, status model.BookStatus) error {
	q := `update books set user_id = $2, status = $3 where book_uid = $1`
	res, err := r.ext.ExecContext(ctx, q, bookUid, ownerID, status)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.ErrNotFound
	}
	return nil
}
