package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bookswap/exchange-service/internal/errs"
	"github.com/bookswap/exchange-service/internal/model"
	"github.com/bookswap/exchange-service/internal/repository"
	"github.com/bookswap/exchange-service/internal/service"
)

// fakeStore is an in-memory stand-in for the postgres repository. WithinTx
// serializes callers on a mutex the way row locks do and restores a
// snapshot when the callback fails, which mimics rollback closely enough
// for the engine's check-then-write sequences.
type fakeStore struct {
	mu        sync.Mutex
	seq       int
	books     map[string]model.Book
	exchanges map[string]model.Exchange
}

var _ service.ExchangeStore = (*fakeStore)(nil)

func newFakeStore(books ...model.Book) *fakeStore {
	f := &fakeStore{
		books:     make(map[string]model.Book),
		exchanges: make(map[string]model.Exchange),
	}
	for _, b := range books {
		f.books[b.BookUid] = b
	}
	return f
}

func (f *fakeStore) GetBook(_ context.Context, bookUid string) (model.Book, error) {
	b, ok := f.books[bookUid]
	if !ok {
		return model.Book{}, errs.ErrNotFound
	}
	return b, nil
}

func (f *fakeStore) GetBookForUpdate(ctx context.Context, bookUid string) (model.Book, error) {
	return f.GetBook(ctx, bookUid)
}

func (f *fakeStore) SetOwnerAndStatus(_ context.Context, bookUid string, ownerID int, status model.BookStatus) error {
	b, ok := f.books[bookUid]
	if !ok {
		return errs.ErrNotFound
	}
	b.OwnerID = ownerID
	b.Status = status
	f.books[bookUid] = b
	return nil
}

func (f *fakeStore) FindPendingDuplicate(_ context.Context, req model.CreateExchangeRequest) (bool, error) {
	for _, ex := range f.exchanges {
		if ex.Status == model.ExchangePending &&
			ex.SenderID == req.SenderID &&
			ex.ReceiverID == req.ReceiverID &&
			ex.OfferedBookUid == req.OfferedBookUid &&
			ex.RequestedBookUid == req.RequestedBookUid {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateExchange(_ context.Context, req model.CreateExchangeRequest) (model.Exchange, error) {
	f.seq++
	ex := model.Exchange{
		ID:               f.seq,
		ExchangeUid:      fmt.Sprintf("exchange-%d", f.seq),
		SenderID:         req.SenderID,
		ReceiverID:       req.ReceiverID,
		OfferedBookUid:   req.OfferedBookUid,
		RequestedBookUid: req.RequestedBookUid,
		Status:           model.ExchangePending,
		CreatedAt:        time.Now().UTC(),
	}
	f.exchanges[ex.ExchangeUid] = ex
	return ex, nil
}

func (f *fakeStore) GetExchange(_ context.Context, exchangeUid string) (model.Exchange, error) {
	ex, ok := f.exchanges[exchangeUid]
	if !ok {
		return model.Exchange{}, errs.ErrNotFound
	}
	return ex, nil
}

func (f *fakeStore) GetExchangeForUpdate(ctx context.Context, exchangeUid string) (model.Exchange, error) {
	return f.GetExchange(ctx, exchangeUid)
}

func (f *fakeStore) UpdateExchangeStatus(_ context.Context, exchangeUid string, status model.ExchangeStatus) error {
	ex, ok := f.exchanges[exchangeUid]
	if !ok {
		return errs.ErrNotFound
	}
	ex.Status = status
	f.exchanges[exchangeUid] = ex
	return nil
}

func (f *fakeStore) ListExchanges(_ context.Context) ([]model.Exchange, error) {
	var items []model.Exchange
	for _, ex := range f.exchanges {
		items = append(items, ex)
	}
	return items, nil
}

func (f *fakeStore) ListSent(_ context.Context, userID int) ([]model.Exchange, error) {
	var items []model.Exchange
	for _, ex := range f.exchanges {
		if ex.SenderID == userID {
			items = append(items, ex)
		}
	}
	return items, nil
}

func (f *fakeStore) ListReceived(_ context.Context, userID int) ([]model.Exchange, error) {
	var items []model.Exchange
	for _, ex := range f.exchanges {
		if ex.ReceiverID == userID {
			items = append(items, ex)
		}
	}
	return items, nil
}

func (f *fakeStore) ListIncoming(_ context.Context, userID int) ([]model.ExchangeSummary, error) {
	return f.summaries(func(ex model.Exchange) (bool, int) { return ex.ReceiverID == userID, ex.SenderID }), nil
}

func (f *fakeStore) ListOutgoing(_ context.Context, userID int) ([]model.ExchangeSummary, error) {
	return f.summaries(func(ex model.Exchange) (bool, int) { return ex.SenderID == userID, ex.ReceiverID }), nil
}

func (f *fakeStore) summaries(match func(model.Exchange) (bool, int)) []model.ExchangeSummary {
	var items []model.ExchangeSummary
	for _, ex := range f.exchanges {
		ok, counterpart := match(ex)
		if !ok {
			continue
		}
		items = append(items, model.ExchangeSummary{
			ExchangeUid:        ex.ExchangeUid,
			OfferedBookTitle:   f.books[ex.OfferedBookUid].Title,
			RequestedBookTitle: f.books[ex.RequestedBookUid].Title,
			Counterpart:        fmt.Sprintf("user-%d", counterpart),
			Status:             ex.Status,
		})
	}
	return items
}

func (f *fakeStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repository.TxRepository) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	booksBak := make(map[string]model.Book, len(f.books))
	for k, v := range f.books {
		booksBak[k] = v
	}
	exchangesBak := make(map[string]model.Exchange, len(f.exchanges))
	for k, v := range f.exchanges {
		exchangesBak[k] = v
	}

	if err := fn(ctx, f); err != nil {
		f.books = booksBak
		f.exchanges = exchangesBak
		return err
	}
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []model.ExchangeEvent
}

func (p *fakePublisher) Publish(_ string, v any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if event, ok := v.(model.ExchangeEvent); ok {
		p.events = append(p.events, event)
	}
	return nil
}

func book(uid string, owner int, status model.BookStatus) model.Book {
	return model.Book{
		BookUid: uid,
		Title:   "title of " + uid,
		Author:  "some author",
		Status:  status,
		OwnerID: owner,
	}
}

func newEngine(books ...model.Book) (*service.ExchangeService, *fakeStore, *fakePublisher) {
	store := newFakeStore(books...)
	pub := &fakePublisher{}
	svc := service.NewExchangeService(store, pub, zap.NewExample().Named("test"))
	return svc, store, pub
}

func proposal(sender, receiver int, offered, requested string) model.CreateExchangeRequest {
	return model.CreateExchangeRequest{
		SenderID:         sender,
		ReceiverID:       receiver,
		OfferedBookUid:   offered,
		RequestedBookUid: requested,
	}
}

func TestPropose_Validation(t *testing.T) {
	t.Parallel()

	const (
		u1 = 1
		u2 = 2
		u3 = 3
	)

	var tests = []struct {
		name    string
		books   []model.Book
		req     model.CreateExchangeRequest
		wantErr error
	}{
		{
			name:    "offered book missing",
			books:   []model.Book{book("b2", u2, model.BookAvailable)},
			req:     proposal(u1, u2, "b1", "b2"),
			wantErr: errs.ErrInvalidOwnership,
		},
		{
			name: "offered book owned by someone else",
			books: []model.Book{
				book("b1", u3, model.BookAvailable),
				book("b2", u2, model.BookAvailable),
			},
			req:     proposal(u1, u2, "b1", "b2"),
			wantErr: errs.ErrInvalidOwnership,
		},
		{
			name:    "requested book missing",
			books:   []model.Book{book("b1", u1, model.BookAvailable)},
			req:     proposal(u1, u2, "b1", "b2"),
			wantErr: errs.ErrNotFound,
		},
		{
			name: "offered book unavailable",
			books: []model.Book{
				book("b1", u1, model.BookUnavailable),
				book("b2", u2, model.BookAvailable),
			},
			req:     proposal(u1, u2, "b1", "b2"),
			wantErr: errs.ErrNotAvailable,
		},
		{
			name: "requested book unavailable",
			books: []model.Book{
				book("b1", u1, model.BookAvailable),
				book("b2", u2, model.BookUnavailable),
			},
			req:     proposal(u1, u2, "b1", "b2"),
			wantErr: errs.ErrNotAvailable,
		},
		{
			name: "self exchange",
			books: []model.Book{
				book("b1", u1, model.BookAvailable),
				book("b2", u1, model.BookAvailable),
			},
			req:     proposal(u1, u1, "b1", "b2"),
			wantErr: errs.ErrSelfExchange,
		},
		{
			// ownership is checked before the self-exchange rule
			name:    "ownership failure wins over self exchange",
			books:   []model.Book{book("b2", u2, model.BookAvailable)},
			req:     proposal(u1, u1, "b1", "b2"),
			wantErr: errs.ErrInvalidOwnership,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, store, _ := newEngine(tt.books...)

			_, err := svc.Propose(context.Background(), tt.req)
			require.ErrorIs(t, err, tt.wantErr)
			require.Empty(t, store.exchanges, "no proposal may be created on a failed validation")
		})
	}
}

func TestPropose_DuplicateSuppression(t *testing.T) {
	t.Parallel()
	svc, _, _ := newEngine(
		book("b1", 1, model.BookAvailable),
		book("b2", 2, model.BookAvailable),
		book("b3", 1, model.BookAvailable),
	)
	ctx := context.Background()

	first, err := svc.Propose(ctx, proposal(1, 2, "b1", "b2"))
	require.NoError(t, err)
	require.Equal(t, model.ExchangePending, first.Status)

	_, err = svc.Propose(ctx, proposal(1, 2, "b1", "b2"))
	require.ErrorIs(t, err, errs.ErrDuplicateExchange)

	// changing any field of the tuple makes it a new proposal
	second, err := svc.Propose(ctx, proposal(1, 2, "b3", "b2"))
	require.NoError(t, err)
	require.NotEqual(t, first.ExchangeUid, second.ExchangeUid)
}

func TestPropose_BooksStayAvailableWhilePending(t *testing.T) {
	t.Parallel()
	svc, store, _ := newEngine(
		book("b1", 1, model.BookAvailable),
		book("b2", 2, model.BookAvailable),
	)
	ctx := context.Background()

	_, err := svc.Propose(ctx, proposal(1, 2, "b1", "b2"))
	require.NoError(t, err)

	require.Equal(t, model.BookAvailable, store.books["b1"].Status)
	require.Equal(t, model.BookAvailable, store.books["b2"].Status)
}

func TestResolve_InvalidDecision(t *testing.T) {
	t.Parallel()
	svc, _, _ := newEngine(
		book("b1", 1, model.BookAvailable),
		book("b2", 2, model.BookAvailable),
	)
	ctx := context.Background()

	ex, err := svc.Propose(ctx, proposal(1, 2, "b1", "b2"))
	require.NoError(t, err)

	for _, decision := range []string{"pending", "cancelled", "", "ACCEPTED"} {
		_, err := svc.Resolve(ctx, ex.ExchangeUid, decision)
		require.ErrorIs(t, err, errs.ErrInvalidStatus, "decision %q", decision)
	}

	got, err := svc.Get(ctx, ex.ExchangeUid)
	require.NoError(t, err)
	require.Equal(t, model.ExchangePending, got.Status)
}

// The proposal's existence and pending status take precedence over the
// decision string.
func TestResolve_DecisionCheckedAfterProposal(t *testing.T) {
	t.Parallel()
	svc, _, _ := newEngine(
		book("b1", 1, model.BookAvailable),
		book("b2", 2, model.BookAvailable),
	)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, "no-such-exchange", "bogus")
	require.ErrorIs(t, err, errs.ErrNotFound)

	ex, err := svc.Propose(ctx, proposal(1, 2, "b1", "b2"))
	require.NoError(t, err)
	_, err = svc.Resolve(ctx, ex.ExchangeUid, "accepted")
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, ex.ExchangeUid, "bogus")
	require.ErrorIs(t, err, errs.ErrAlreadyResolved)
}

func TestResolve_NotFound(t *testing.T) {
	t.Parallel()
	svc, _, _ := newEngine()

	_, err := svc.Resolve(context.Background(), "no-such-exchange", "accepted")
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestResolve_AcceptSwapsOwnership(t *testing.T) {
	t.Parallel()
	svc, store, _ := newEngine(
		book("b1", 1, model.BookAvailable),
		book("b2", 2, model.BookAvailable),
	)
	ctx := context.Background()

	ex, err := svc.Propose(ctx, proposal(1, 2, "b1", "b2"))
	require.NoError(t, err)

	resolved, err := svc.Resolve(ctx, ex.ExchangeUid, "accepted")
	require.NoError(t, err)
	require.Equal(t, model.ExchangeAccepted, resolved.Status)

	require.Equal(t, 2, store.books["b1"].OwnerID)
	require.Equal(t, 1, store.books["b2"].OwnerID)
	require.Equal(t, model.BookUnavailable, store.books["b1"].Status)
	require.Equal(t, model.BookUnavailable, store.books["b2"].Status)
}

func TestResolve_DeclineRestoresAvailability(t *testing.T) {
	t.Parallel()
	svc, store, _ := newEngine(
		book("b1", 1, model.BookAvailable),
		book("b2", 2, model.BookAvailable),
	)
	ctx := context.Background()

	ex, err := svc.Propose(ctx, proposal(1, 2, "b1", "b2"))
	require.NoError(t, err)

	resolved, err := svc.Resolve(ctx, ex.ExchangeUid, "declined")
	require.NoError(t, err)
	require.Equal(t, model.ExchangeDeclined, resolved.Status)

	require.Equal(t, 1, store.books["b1"].OwnerID)
	require.Equal(t, 2, store.books["b2"].OwnerID)
	require.Equal(t, model.BookAvailable, store.books["b1"].Status)
	require.Equal(t, model.BookAvailable, store.books["b2"].Status)
}

func TestResolve_TerminalStateIsImmutable(t *testing.T) {
	t.Parallel()
	svc, store, _ := newEngine(
		book("b1", 1, model.BookAvailable),
		book("b2", 2, model.BookAvailable),
	)
	ctx := context.Background()

	ex, err := svc.Propose(ctx, proposal(1, 2, "b1", "b2"))
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, ex.ExchangeUid, "accepted")
	require.NoError(t, err)
	booksAfterFirst := map[string]model.Book{"b1": store.books["b1"], "b2": store.books["b2"]}

	for _, decision := range []string{"accepted", "declined"} {
		_, err := svc.Resolve(ctx, ex.ExchangeUid, decision)
		require.ErrorIs(t, err, errs.ErrAlreadyResolved)
	}

	require.Equal(t, booksAfterFirst["b1"], store.books["b1"], "repeated resolve must not touch books")
	require.Equal(t, booksAfterFirst["b2"], store.books["b2"])
}

func TestResolve_StaleOwnership(t *testing.T) {
	t.Parallel()
	svc, _, _ := newEngine(
		book("b1", 1, model.BookAvailable),
		book("b2", 2, model.BookAvailable),
		book("b3", 3, model.BookAvailable),
	)
	ctx := context.Background()

	// the same offered book sits in two pending proposals
	first, err := svc.Propose(ctx, proposal(1, 2, "b1", "b2"))
	require.NoError(t, err)
	second, err := svc.Propose(ctx, proposal(1, 3, "b1", "b3"))
	require.NoError(t, err)

	_, err = svc.Resolve(ctx, first.ExchangeUid, "accepted")
	require.NoError(t, err)

	// b1 now belongs to user 2, the second proposal went stale
	_, err = svc.Resolve(ctx, second.ExchangeUid, "accepted")
	require.ErrorIs(t, err, errs.ErrStaleExchange)

	got, err := svc.Get(ctx, second.ExchangeUid)
	require.NoError(t, err)
	require.Equal(t, model.ExchangePending, got.Status, "stale resolution must roll back fully")
}

func TestResolve_ConcurrentRace(t *testing.T) {
	t.Parallel()
	svc, store, _ := newEngine(
		book("b1", 1, model.BookAvailable),
		book("b2", 2, model.BookAvailable),
	)
	ctx := context.Background()

	ex, err := svc.Propose(ctx, proposal(1, 2, "b1", "b2"))
	require.NoError(t, err)

	errc := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Resolve(ctx, ex.ExchangeUid, "accepted")
			errc <- err
		}()
	}
	wg.Wait()
	close(errc)

	var succeeded, alreadyResolved int
	for err := range errc {
		switch {
		case err == nil:
			succeeded++
		default:
			require.ErrorIs(t, err, errs.ErrAlreadyResolved)
			alreadyResolved++
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, alreadyResolved)

	// books were mutated exactly once
	require.Equal(t, 2, store.books["b1"].OwnerID)
	require.Equal(t, 1, store.books["b2"].OwnerID)
}

func TestExchange_RoundTrip(t *testing.T) {
	t.Parallel()
	svc, store, pub := newEngine(
		book("b1", 1, model.BookAvailable),
		book("b2", 2, model.BookAvailable),
	)
	ctx := context.Background()

	ex, err := svc.Propose(ctx, proposal(1, 2, "b1", "b2"))
	require.NoError(t, err)

	got, err := svc.Get(ctx, ex.ExchangeUid)
	require.NoError(t, err)
	require.Equal(t, model.ExchangePending, got.Status)

	_, err = svc.Resolve(ctx, ex.ExchangeUid, "accepted")
	require.NoError(t, err)

	got, err = svc.Get(ctx, ex.ExchangeUid)
	require.NoError(t, err)
	require.Equal(t, model.ExchangeAccepted, got.Status)
	require.Equal(t, 2, store.books["b1"].OwnerID)
	require.Equal(t, 1, store.books["b2"].OwnerID)
	require.Equal(t, model.BookUnavailable, store.books["b1"].Status)
	require.Equal(t, model.BookUnavailable, store.books["b2"].Status)

	require.Len(t, pub.events, 2)
	require.Equal(t, model.EventProposed, pub.events[0].EventType)
	require.Equal(t, model.EventAccepted, pub.events[1].EventType)
}

func TestListUser_SplitsByRole(t *testing.T) {
	t.Parallel()
	svc, _, _ := newEngine(
		book("b1", 1, model.BookAvailable),
		book("b2", 2, model.BookAvailable),
		book("b3", 3, model.BookAvailable),
	)
	ctx := context.Background()

	sent, err := svc.Propose(ctx, proposal(1, 2, "b1", "b2"))
	require.NoError(t, err)
	received, err := svc.Propose(ctx, proposal(3, 1, "b3", "b1"))
	require.NoError(t, err)

	both, err := svc.ListUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, both.Sent, 1)
	require.Len(t, both.Received, 1)
	require.Equal(t, sent.ExchangeUid, both.Sent[0].ExchangeUid)
	require.Equal(t, received.ExchangeUid, both.Received[0].ExchangeUid)
}
