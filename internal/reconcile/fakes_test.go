package reconcile

import (
	"context"
	"errors"
	"sync"
	"time"

	"classifieds/internal/email"
	"classifieds/internal/ledger"
	"classifieds/internal/listing"
	"classifieds/internal/membership"
	"classifieds/internal/payment"
	"classifieds/internal/user"

	"github.com/shopspring/decimal"
)

var errStoreDown = errors.New("store unavailable")

type fakeProcessor struct {
	sessions map[string]*payment.Session
	events   map[string]*payment.Event
	listed   []payment.Session
	listErr  error
	parseErr error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		sessions: map[string]*payment.Session{},
		events:   map[string]*payment.Event{},
	}
}

func (p *fakeProcessor) CreateCheckoutSession(context.Context, payment.CheckoutParams) (*payment.Session, error) {
	return nil, errors.New("not used")
}

func (p *fakeProcessor) GetSession(_ context.Context, id string) (*payment.Session, error) {
	s, ok := p.sessions[id]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (p *fakeProcessor) ListSessions(_ context.Context, params payment.ListParams) ([]payment.Session, error) {
	if p.listErr != nil {
		return nil, p.listErr
	}
	out := p.listed
	if params.Limit > 0 && len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

// ParseWebhook treats the payload as an event key and the signature as
// valid when it equals "sig".
func (p *fakeProcessor) ParseWebhook(payload []byte, signature string) (*payment.Event, error) {
	if p.parseErr != nil {
		return nil, p.parseErr
	}
	if signature != "sig" {
		return nil, payment.ErrInvalidSignature
	}
	ev, ok := p.events[string(payload)]
	if !ok {
		return nil, payment.ErrMalformedPayload
	}
	return ev, nil
}

type memLedgerRepo struct {
	mu      sync.Mutex
	nextID  int64
	rows    map[string]*ledger.Transaction
	failAll bool
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{rows: map[string]*ledger.Transaction{}}
}

func (m *memLedgerRepo) FindByStripeID(_ context.Context, id string) (*ledger.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return nil, errStoreDown
	}
	t, ok := m.rows[id]
	if !ok {
		return nil, ledger.ErrTransactionNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memLedgerRepo) InsertIfAbsent(_ context.Context, t *ledger.Transaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll {
		return 0, errStoreDown
	}
	if _, ok := m.rows[*t.StripeID]; ok {
		return 0, nil
	}
	m.nextID++
	cp := *t
	cp.ID = m.nextID
	m.rows[*t.StripeID] = &cp
	return cp.ID, nil
}

func (m *memLedgerRepo) ExistingStripeIDs(_ context.Context, ids []string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]bool{}
	for _, id := range ids {
		if _, ok := m.rows[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (m *memLedgerRepo) SumByType(_ context.Context, status ledger.Status, _ *time.Time) ([]ledger.TypeTotal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byType := map[ledger.Type]*ledger.TypeTotal{}
	var out []ledger.TypeTotal
	for _, t := range m.rows {
		if t.Status != status {
			continue
		}
		tt, ok := byType[t.Type]
		if !ok {
			tt = &ledger.TypeTotal{Type: t.Type}
			byType[t.Type] = tt
		}
		tt.Total = tt.Total.Add(t.Amount)
		tt.Count++
	}
	for _, tt := range byType {
		out = append(out, *tt)
	}
	return out, nil
}

func (m *memLedgerRepo) Recent(context.Context, *time.Time, int) ([]ledger.RecentTransaction, error) {
	return nil, nil
}

func (m *memLedgerRepo) ListByUser(context.Context, string, int, int) ([]ledger.Transaction, error) {
	return nil, nil
}

func (m *memLedgerRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memListingRepo struct {
	mu       sync.Mutex
	listings map[int64]*listing.Listing
	writes   int
	err      error
}

func (m *memListingRepo) GetByID(_ context.Context, id int64) (*listing.Listing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, listing.ErrListingNotFound
	}
	cp := *l
	return &cp, nil
}

func (m *memListingRepo) SetPromotion(_ context.Context, id int64, tier listing.Tier, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	l, ok := m.listings[id]
	if !ok {
		return listing.ErrListingNotFound
	}
	m.writes++
	l.PromotionTier = tier
	l.PromotionExpiresAt = &expiresAt
	l.IsPromoted = true
	return nil
}

func (m *memListingRepo) ExpirePromotions(context.Context, time.Time) (int64, error) {
	return 0, nil
}

type memMembershipRepo struct {
	mu    sync.Mutex
	users map[string]membership.Status
	tiers map[string]string
}

func newMemMembershipRepo(users ...string) *memMembershipRepo {
	m := &memMembershipRepo{users: map[string]membership.Status{}, tiers: map[string]string{}}
	for _, u := range users {
		m.users[u] = membership.StatusNone
	}
	return m
}

func (m *memMembershipRepo) SetMembership(_ context.Context, userID, tier string, status membership.Status, _ *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return membership.ErrUserNotFound
	}
	m.users[userID] = status
	m.tiers[userID] = tier
	return nil
}

func (m *memMembershipRepo) SetStatus(_ context.Context, userID string, status membership.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return membership.ErrUserNotFound
	}
	m.users[userID] = status
	return nil
}

type memWallet struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	refs     map[string]bool
}

func newMemWallet() *memWallet {
	return &memWallet{balances: map[string]decimal.Decimal{}, refs: map[string]bool{}}
}

func (w *memWallet) Credit(_ context.Context, userID string, amount decimal.Decimal, reference string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.refs[reference] {
		return false, nil
	}
	w.refs[reference] = true
	w.balances[userID] = w.balances[userID].Add(amount)
	return true, nil
}

type recordingReceipts struct {
	mu   sync.Mutex
	sent []email.Receipt
}

func (r *recordingReceipts) SendReceipt(_ context.Context, rc email.Receipt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, rc)
	return nil
}

type memUsers map[string]*user.User

func (m memUsers) FindByExternalID(_ context.Context, id string) (*user.User, error) {
	if u, ok := m[id]; ok {
		return u, nil
	}
	return nil, user.ErrUserNotFound
}

type fixture struct {
	processor   *fakeProcessor
	ledgerRepo  *memLedgerRepo
	listings    *memListingRepo
	memberships *memMembershipRepo
	wallet      *memWallet
	receipts    *recordingReceipts
	fulfiller   *Fulfiller
	verifier    *Verifier
	webhooks    *WebhookReceiver
	syncer      *Syncer
	now         time.Time
}

func newFixture() *fixture {
	f := &fixture{
		processor:  newFakeProcessor(),
		ledgerRepo: newMemLedgerRepo(),
		listings: &memListingRepo{listings: map[int64]*listing.Listing{
			7: {ID: 7, OwnerID: "user_1", PromotionTier: listing.TierNone},
		}},
		memberships: newMemMembershipRepo("user_1"),
		wallet:      newMemWallet(),
		receipts:    &recordingReceipts{},
		now:         time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC),
	}

	clock := func() time.Time { return f.now }
	recorder := ledger.NewRecorder(f.ledgerRepo).WithClock(clock)
	memberships := membership.NewServiceWithClock(f.memberships, clock)

	f.fulfiller = NewFulfiller(
		listing.NewApplier(f.listings).WithClock(clock),
		memberships,
		f.wallet,
		recorder,
	).WithReceipts(f.receipts).WithUsers(memUsers{
		"user_1": {ExternalID: "user_1", Email: "account@example.com"},
	})
	f.verifier = NewVerifier(f.processor, f.fulfiller)
	f.webhooks = NewWebhookReceiver(f.processor, f.fulfiller, memberships)
	f.syncer = NewSyncer(f.processor, recorder)
	return f
}

func promotionSession(id string) *payment.Session {
	return &payment.Session{
		ID:            id,
		PaymentStatus: payment.StatusPaid,
		AmountTotal:   100000,
		Currency:      "eur",
		CustomerEmail: "seller@example.com",
		Created:       time.Date(2026, 3, 30, 8, 0, 0, 0, time.UTC),
		Metadata: map[string]string{
			"type":      "LISTING_PROMOTION",
			"userId":    "user_1",
			"listingId": "7",
			"tier":      "HOMEPAGE",
		},
	}
}

func checkoutEvent(s *payment.Session) *payment.Event {
	return &payment.Event{ID: "evt_" + s.ID, Type: payment.EventCheckoutCompleted, Session: s}
}
