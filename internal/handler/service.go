package handler

import (
	"context"

	"github.com/bookswap/exchange-service/internal/model"
	"github.com/bookswap/exchange-service/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go -package=mocks

type BookService interface {
	CreateBook(ctx context.Context, req model.CreateBookRequest) (model.Book, error)
	GetBook(ctx context.Context, bookUid string) (model.Book, error)
	ListBooks(ctx context.Context, filter model.BookFilter) ([]model.Book, error)
	UpdateBook(ctx context.Context, bookUid string, req model.UpdateBookRequest) (model.Book, error)
	DeleteBook(ctx context.Context, bookUid string) error
}

type UserService interface {
	Register(ctx context.Context, req model.RegisterRequest) (model.User, error)
	Login(ctx context.Context, req model.LoginRequest) (model.User, error)
	GetUser(ctx context.Context, id int) (model.User, error)
	UpdateUser(ctx context.Context, id int, req model.UpdateUserRequest) (model.User, error)
	DeleteUser(ctx context.Context, id int) error
	ListUsers(ctx context.Context) ([]model.User, error)
}

type ExchangeService interface {
	Propose(ctx context.Context, req model.CreateExchangeRequest) (model.Exchange, error)
	Resolve(ctx context.Context, exchangeUid, decision string) (model.Exchange, error)
	Get(ctx context.Context, exchangeUid string) (model.Exchange, error)
	ListAll(ctx context.Context) ([]model.Exchange, error)
	ListUser(ctx context.Context, userID int) (model.UserExchanges, error)
	Incoming(ctx context.Context, userID int) ([]model.ExchangeSummary, error)
	Outgoing(ctx context.Context, userID int) ([]model.ExchangeSummary, error)
}

type StatsService interface {
	GetStats(ctx context.Context) (model.Stats, error)
}

var (
	_ BookService     = (*service.BookService)(nil)
	_ UserService     = (*service.UserService)(nil)
	_ ExchangeService = (*service.ExchangeService)(nil)
	_ StatsService    = (*service.StatsService)(nil)
)
