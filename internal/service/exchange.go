package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/bookswap/exchange-service/internal/errs"
	"github.com/bookswap/exchange-service/internal/model"
	"github.com/bookswap/exchange-service/internal/repository"
	"github.com/bookswap/exchange-service/pkg/kafka"
)

// EventPublisher pushes exchange lifecycle events to the message bus.
type EventPublisher interface {
	Publish(topic string, v any) error
}

// ExchangeStore is the narrow slice of the repository the engine consumes;
// tests substitute it with an in-memory fake.
type ExchangeStore interface {
	GetBook(ctx context.Context, bookUid string) (model.Book, error)
	FindPendingDuplicate(ctx context.Context, req model.CreateExchangeRequest) (bool, error)
	CreateExchange(ctx context.Context, req model.CreateExchangeRequest) (model.Exchange, error)
	GetExchange(ctx context.Context, exchangeUid string) (model.Exchange, error)
	ListExchanges(ctx context.Context) ([]model.Exchange, error)
	ListSent(ctx context.Context, userID int) ([]model.Exchange, error)
	ListReceived(ctx context.Context, userID int) ([]model.Exchange, error)
	ListIncoming(ctx context.Context, userID int) ([]model.ExchangeSummary, error)
	ListOutgoing(ctx context.Context, userID int) ([]model.ExchangeSummary, error)
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.TxRepository) error) error
}

var _ ExchangeStore = (repository.Repository)(nil)

type ExchangeService struct {
	log  *zap.Logger
	repo ExchangeStore
	pub  EventPublisher
}

func NewExchangeService(repo ExchangeStore, pub EventPublisher, log *zap.Logger) *ExchangeService {
	return &ExchangeService{
		log:  log,
		repo: repo,
		pub:  pub,
	}
}

// Propose validates a new exchange against book ownership and availability
// and inserts it as pending. Books stay available while the proposal is
// pending, so the same book may sit in several pending proposals at once.
func (s *ExchangeService) Propose(ctx context.Context, req model.CreateExchangeRequest) (model.Exchange, error) {
	offered, err := s.repo.GetBook(ctx, req.OfferedBookUid)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Exchange{}, errs.ErrInvalidOwnership
		}
		return model.Exchange{}, err
	}
	if offered.OwnerID != req.SenderID {
		return model.Exchange{}, errs.ErrInvalidOwnership
	}

	requested, err := s.repo.GetBook(ctx, req.RequestedBookUid)
	if err != nil {
		return model.Exchange{}, err
	}

	if offered.Status != model.BookAvailable || requested.Status != model.BookAvailable {
		return model.Exchange{}, errs.ErrNotAvailable
	}
	if req.SenderID == req.ReceiverID {
		return model.Exchange{}, errs.ErrSelfExchange
	}

	exists, err := s.repo.FindPendingDuplicate(ctx, req)
	if err != nil {
		return model.Exchange{}, err
	}
	if exists {
		return model.Exchange{}, errs.ErrDuplicateExchange
	}

	ex, err := s.repo.CreateExchange(ctx, req)
	if err != nil {
		return model.Exchange{}, err
	}
	s.publish(model.EventProposed, ex)
	return ex, nil
}

// Resolve transitions a pending exchange to accepted or declined. The
// status write and both book writes happen in one transaction: acceptance
// swaps ownership and takes both books out of circulation, decline puts
// both back to available.
func (s *ExchangeService) Resolve(ctx context.Context, exchangeUid, decision string) (model.Exchange, error) {
	status := model.ExchangeStatus(decision)

	var resolved model.Exchange
	err := s.repo.WithinTx(ctx, func(ctx context.Context, tx repository.TxRepository) error {
		ex, err := tx.GetExchangeForUpdate(ctx, exchangeUid)
		if err != nil {
			return err
		}
		if ex.Status != model.ExchangePending {
			return errs.ErrAlreadyResolved
		}
		// the decision is judged only once the proposal is known to exist
		// and to still be pending
		if !status.Terminal() {
			return errs.ErrInvalidStatus
		}

		offered, err := tx.GetBookForUpdate(ctx, ex.OfferedBookUid)
		if err != nil {
			return err
		}
		requested, err := tx.GetBookForUpdate(ctx, ex.RequestedBookUid)
		if err != nil {
			return err
		}
		if offered.OwnerID != ex.SenderID {
			// traded away by another accepted exchange while this one
			// stayed pending
			return errs.ErrStaleExchange
		}

		if err := tx.UpdateExchangeStatus(ctx, exchangeUid, status); err != nil {
			return err
		}

		if status == model.ExchangeAccepted {
			if err := tx.SetOwnerAndStatus(ctx, offered.BookUid, ex.ReceiverID, model.BookUnavailable); err != nil {
				return err
			}
			if err := tx.SetOwnerAndStatus(ctx, requested.BookUid, ex.SenderID, model.BookUnavailable); err != nil {
				return err
			}
		} else {
			if err := tx.SetOwnerAndStatus(ctx, offered.BookUid, offered.OwnerID, model.BookAvailable); err != nil {
				return err
			}
			if err := tx.SetOwnerAndStatus(ctx, requested.BookUid, requested.OwnerID, model.BookAvailable); err != nil {
				return err
			}
		}

		ex.Status = status
		resolved = ex
		return nil
	})
	if err != nil {
		return model.Exchange{}, err
	}

	eventType := model.EventAccepted
	if status == model.ExchangeDeclined {
		eventType = model.EventDeclined
	}
	s.publish(eventType, resolved)
	return resolved, nil
}

func (s *ExchangeService) Get(ctx context.Context, exchangeUid string) (model.Exchange, error) {
	return s.repo.GetExchange(ctx, exchangeUid)
}

func (s *ExchangeService) ListAll(ctx context.Context) ([]model.Exchange, error) {
	return s.repo.ListExchanges(ctx)
}

func (s *ExchangeService) ListUser(ctx context.Context, userID int) (model.UserExchanges, error) {
	sent, err := s.repo.ListSent(ctx, userID)
	if err != nil {
		return model.UserExchanges{}, err
	}
	received, err := s.repo.ListReceived(ctx, userID)
	if err != nil {
		return model.UserExchanges{}, err
	}
	return model.UserExchanges{Sent: sent, Received: received}, nil
}

func (s *ExchangeService) Incoming(ctx context.Context, userID int) ([]model.ExchangeSummary, error) {
	return s.repo.ListIncoming(ctx, userID)
}

func (s *ExchangeService) Outgoing(ctx context.Context, userID int) ([]model.ExchangeSummary, error) {
	return s.repo.ListOutgoing(ctx, userID)
}

// publish is best effort: a lost event never fails the exchange itself.
func (s *ExchangeService) publish(eventType model.EventType, ex model.Exchange) {
	if s.pub == nil {
		return
	}
	event := model.ExchangeEvent{
		ExchangeUid: ex.ExchangeUid,
		EventType:   eventType,
		SenderID:    ex.SenderID,
		ReceiverID:  ex.ReceiverID,
		Timestamp:   time.Now().UTC(),
	}
	if err := s.pub.Publish(kafka.ExchangeTopic, event); err != nil {
		s.log.Warn("publish exchange event", zap.Error(err))
	}
}
