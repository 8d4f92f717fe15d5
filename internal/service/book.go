package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/bookswap/exchange-service/internal/errs"
	"github.com/bookswap/exchange-service/internal/model"
	"github.com/bookswap/exchange-service/internal/repository"
)

type BookService struct {
	log  *zap.Logger
	repo repository.Repository
}

func NewBookService(repo repository.Repository, log *zap.Logger) *BookService {
	return &BookService{
		log:  log,
		repo: repo,
	}
}

func (s *BookService) CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	if req.Title == "" || req.Author == "" {
		return model.Book{}, errs.ErrEmptyField
	}
	return s.repo.CreateBook(ctx, req)
}

func (s *BookService) GetBook(ctx context.Context, bookUid string) (model.Book, error) {
	return s.repo.GetBook(ctx, bookUid)
}

func (s *BookService) ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, errs.ErrInvalidBookStatus
	}
	return s.repo.ListBooks(ctx, filter)
}

func (s *BookService) UpdateBook(ctx context.Context, bookUid string, req model.UpdateBookRequest) (model.Book, error) {
	if req.Status != nil && !req.Status.Valid() {
		return model.Book{}, errs.ErrInvalidBookStatus
	}
	return s.repo.UpdateBook(ctx, bookUid, req)
}

func (s *BookService) DeleteBook(ctx context.Context, bookUid string) error {
	return s.repo.DeleteBook(ctx, bookUid)
}
