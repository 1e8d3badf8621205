package payment

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"paytabs-commerce/internal/config"
	"paytabs-commerce/internal/metrics"
	"paytabs-commerce/internal/order"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// --- Gateway mock ---

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) IsValidCallback(cb *Callback) bool {
	args := m.Called(cb)
	return args.Bool(0)
}

func (m *MockGateway) VerifyPayment(ctx context.Context, tranRef string) (*Verification, error) {
	args := m.Called(ctx, tranRef)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Verification), args.Error(1)
}

func (m *MockGateway) RequestFollowUp(ctx context.Context, req FollowUpRequest) (*FollowUpResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*FollowUpResult), args.Error(1)
}

func (m *MockGateway) CreatePayPage(ctx context.Context, req PayPageRequest) (*PayPage, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*PayPage), args.Error(1)
}

// --- Transactor fake ---

// fakeTx serialises transactions the way the order row lock does.
type fakeTx struct {
	mu sync.Mutex
}

func (f *fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx, nil)
}

// --- In-memory order store ---

type memOrders struct {
	mu     sync.Mutex
	orders map[int64]order.Order
}

func newMemOrders(orders ...order.Order) *memOrders {
	m := &memOrders{orders: map[int64]order.Order{}}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *memOrders) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	return &o, nil
}

func (m *memOrders) LockByID(ctx context.Context, tx *sql.Tx, id int64) (*order.Order, error) {
	return m.GetByID(ctx, id)
}

func (m *memOrders) UpdateState(ctx context.Context, tx *sql.Tx, id int64, state string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.State = state
	m.orders[id] = o
	return nil
}

func (m *memOrders) state(id int64) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].State
}

// --- In-memory payment store ---

type memPayments struct {
	mu        sync.Mutex
	nextID    int64
	payments  map[int64]Payment
	callbacks []CallbackRecord
	processed map[int64]bool
	failed    map[int64]string

	findErr error
	saveErr error
}

func newMemPayments(existing ...Payment) *memPayments {
	m := &memPayments{
		payments:  map[int64]Payment{},
		processed: map[int64]bool{},
		failed:    map[int64]string{},
	}
	for _, p := range existing {
		m.payments[p.ID] = p
		if p.ID > m.nextID {
			m.nextID = p.ID
		}
	}
	return m
}

func (m *memPayments) GetByID(ctx context.Context, id int64) (*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	return &p, nil
}

func (m *memPayments) LockByID(ctx context.Context, tx *sql.Tx, id int64) (*Payment, error) {
	return m.GetByID(ctx, id)
}

func (m *memPayments) FindByRemote(ctx context.Context, tx *sql.Tx, orderID int64, remoteID, remoteState string) ([]*Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	var out []*Payment
	for _, p := range m.payments {
		if p.OrderID == orderID && p.RemoteID == remoteID && p.RemoteState == remoteState {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memPayments) Create(ctx context.Context, tx *sql.Tx, p *Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.payments {
		if existing.OrderID == p.OrderID && existing.RemoteID == p.RemoteID && existing.RemoteState == p.RemoteState {
			if !p.State.Is(StateUnmapped) {
				existing.State = p.State
				m.payments[id] = existing
			}
			p.ID = id
			return false, nil
		}
	}
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	m.payments[p.ID] = *p
	return true, nil
}

func (m *memPayments) UpdateState(ctx context.Context, tx *sql.Tx, id int64, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return ErrPaymentNotFound
	}
	p.State = state
	m.payments[id] = p
	return nil
}

func (m *memPayments) UpdateRefund(ctx context.Context, tx *sql.Tx, id int64, refunded decimal.Decimal, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[id]
	if !ok {
		return ErrPaymentNotFound
	}
	p.RefundedAmount = refunded
	p.State = state
	m.payments[id] = p
	return nil
}

func (m *memPayments) SaveCallback(ctx context.Context, rec CallbackRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	m.callbacks = append(m.callbacks, rec)
	return int64(len(m.callbacks)), nil
}

func (m *memPayments) MarkCallbackProcessed(ctx context.Context, callbackID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.processed[callbackID] = true
	return nil
}

func (m *memPayments) MarkCallbackFailed(ctx context.Context, callbackID int64, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[callbackID] = reason
	return nil
}

func (m *memPayments) all() []Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Payment, 0, len(m.payments))
	for _, p := range m.payments {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// --- Fixture ---

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() config.PayTabsConfig {
	return config.PayTabsConfig{
		Region:              "ARE",
		ProfileID:           "12345",
		ServerKey:           "SKEY",
		CompleteOrderStatus: config.OrderStatusCompleted,
		PayPageMode:         "sale",
		Timeout:             time.Second,
	}
}

func draftOrder(id int64, total string) order.Order {
	return order.Order{
		ID:    id,
		Total: order.Price{Number: decimal.RequireFromString(total), Currency: "AED"},
		State: "draft",
	}
}

type fixture struct {
	svc      *service
	gateway  *MockGateway
	orders   *memOrders
	payments *memPayments
	stats    *metrics.Reconciliation
}

func newFixture(cfg config.PayTabsConfig, orders *memOrders, payments *memPayments) *fixture {
	gw := new(MockGateway)
	stats := metrics.NewReconciliation()
	svc := NewService(&fakeTx{}, orders, payments, gw, cfg, "https://shop.example", stats).(*service)
	svc.now = func() time.Time { return fixedNow }
	return &fixture{svc: svc, gateway: gw, orders: orders, payments: payments, stats: stats}
}
