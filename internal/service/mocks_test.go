package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/brechodofuturo/marketplace/internal/cache"
	"github.com/brechodofuturo/marketplace/internal/domain"
	"github.com/brechodofuturo/marketplace/internal/repository"
	"github.com/google/uuid"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory stand-in for the Postgres and Mongo stores.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*domain.User
	products map[int64]*domain.Product
	orders   map[uuid.UUID]*domain.Order
	payments []*domain.Payment
	reviews  map[int64]*domain.Review
	carts    map[int64]*domain.Cart
	events   []*repository.OutboxEvent

	// onLock runs when a transaction locks products, before they are read.
	onLock func()
	// onProductUpdate runs before a product update takes the row.
	onProductUpdate func()
	// onGetCart runs after a cart read has taken its copy.
	onGetCart func()

	txErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[int64]*domain.User{},
		products: map[int64]*domain.Product{},
		orders:   map[uuid.UUID]*domain.Order{},
		reviews:  map[int64]*domain.Review{},
		carts:    map[int64]*domain.Cart{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addUser(u *domain.User) *domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.id()
	m.users[u.ID] = u
	return u
}

func (m *memStore) addProduct(p *domain.Product) *domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	if p.Status == "" {
		p.Status = domain.ProductStatusAvailable
	}
	m.products[p.ID] = p
	return p
}

func (m *memStore) product(id int64) domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.products[id]
}

// users

func (m *memStore) CreateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return repository.ErrEmailTaken
		}
	}
	u.ID = m.id()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (m *memStore) ListUsers(_ context.Context, _ domain.Page) ([]*domain.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.User
	for _, u := range m.users {
		cp := *u
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) UpdateUser(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return repository.ErrUserNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memStore) UpdatePassword(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memStore) DeleteUser(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(m.users, id)
	return nil
}

// products

func (m *memStore) CreateProduct(_ context.Context, p *domain.Product, _ []int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.id()
	cp := *p
	m.products[p.ID] = &cp
	return nil
}

func (m *memStore) GetProductByID(_ context.Context, id int64) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memStore) GetProductsByIDs(_ context.Context, ids []int64) (map[int64]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.productsByIDs(ids), nil
}

func (m *memStore) productsByIDs(ids []int64) map[int64]*domain.Product {
	out := map[int64]*domain.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			cp := *p
			out[id] = &cp
		}
	}
	return out
}

func (m *memStore) ListProducts(_ context.Context, _ domain.ProductFilter, _ domain.Page) ([]*domain.Product, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Product
	for _, p := range m.products {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (m *memStore) UpdateProduct(_ context.Context, id int64, _ []int64, apply func(p *domain.Product) error) error {
	if m.onProductUpdate != nil {
		m.onProductUpdate()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	cp := *p
	if err := apply(&cp); err != nil {
		return err
	}
	m.products[id] = &cp
	return nil
}

func (m *memStore) AppendProductImages(_ context.Context, id int64, paths []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Images = append(append([]string(nil), p.Images...), paths...)
	return nil
}

func (m *memStore) DeleteProduct(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return repository.ErrProductNotFound
	}
	delete(m.products, id)
	return nil
}

// carts

func (m *memStore) GetCart(_ context.Context, userID int64) (*domain.Cart, error) {
	m.mu.Lock()
	c, ok := m.carts[userID]
	if !ok {
		m.mu.Unlock()
		return nil, repository.ErrCartNotFound
	}
	cp := *c
	cp.Items = append([]domain.CartItem(nil), c.Items...)
	hook := m.onGetCart
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &cp, nil
}

func (m *memStore) AddItem(_ context.Context, userID int64, item domain.CartItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.carts[userID]
	if !ok {
		c = &domain.Cart{UserID: userID}
		m.carts[userID] = c
	}
	for i := range c.Items {
		if c.Items[i].ProductID == item.ProductID {
			c.Items[i].Quantity = item.Quantity
			c.Items[i].PriceSnapshot = item.PriceSnapshot
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

func (m *memStore) UpdateItemQuantity(_ context.Context, userID, productID int64, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[userID]; ok {
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				c.Items[i].Quantity = quantity
				return nil
			}
		}
	}
	return repository.ErrItemNotFound
}

func (m *memStore) RemoveItem(_ context.Context, userID, productID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.carts[userID]; ok {
		for i := range c.Items {
			if c.Items[i].ProductID == productID {
				c.Items = append(c.Items[:i], c.Items[i+1:]...)
				return nil
			}
		}
	}
	return repository.ErrItemNotFound
}

func (m *memStore) DeleteCart(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.carts[userID]; !ok {
		return repository.ErrCartNotFound
	}
	delete(m.carts, userID)
	return nil
}

// orders

// WithTx applies fn to the store and restores products, orders, payments
// and events when fn fails.
func (m *memStore) WithTx(_ context.Context, fn func(tx repository.Tx) error) error {
	if m.txErr != nil {
		return m.txErr
	}

	m.mu.Lock()
	products := map[int64]domain.Product{}
	for id, p := range m.products {
		products[id] = *p
	}
	orders := map[uuid.UUID]domain.Order{}
	for id, o := range m.orders {
		orders[id] = *o
	}
	nPayments, nEvents := len(m.payments), len(m.events)
	m.mu.Unlock()

	if err := fn(&memTx{m: m}); err != nil {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.products = map[int64]*domain.Product{}
		for id, p := range products {
			cp := p
			m.products[id] = &cp
		}
		m.orders = map[uuid.UUID]*domain.Order{}
		for id, o := range orders {
			cp := o
			m.orders[id] = &cp
		}
		m.payments = m.payments[:nPayments]
		m.events = m.events[:nEvents]
		return err
	}
	return nil
}

func (m *memStore) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *memStore) ListOrders(_ context.Context, f domain.OrderFilter, _ domain.Page) ([]*domain.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Order
	for _, o := range m.orders {
		if f.UserID != 0 && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, int64(len(out)), nil
}

func (m *memStore) ListPaymentsByOrder(_ context.Context, orderID uuid.UUID) ([]*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Payment
	for _, p := range m.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) eventTypes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.events {
		out = append(out, e.EventType)
	}
	return out
}

type memTx struct {
	m *memStore
}

func (t *memTx) LockProducts(_ context.Context, ids []int64) (map[int64]*domain.Product, error) {
	if t.m.onLock != nil {
		t.m.onLock()
	}
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	return t.m.productsByIDs(ids), nil
}

func (t *memTx) DecrementStock(_ context.Context, productID int64, qty int) (int, error) {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	p, ok := t.m.products[productID]
	if !ok || p.Stock < qty {
		return 0, repository.ErrInsufficientStock
	}
	p.Stock -= qty
	p.Status = domain.StatusForStock(p.Status, p.Stock)
	return p.Stock, nil
}

func (t *memTx) RestoreStock(_ context.Context, productID int64, qty int) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	p, ok := t.m.products[productID]
	if !ok {
		return repository.ErrProductNotFound
	}
	p.Stock += qty
	p.Status = domain.StatusForStock(p.Status, p.Stock)
	return nil
}

func (t *memTx) InsertOrder(_ context.Context, o *domain.Order) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	cp := *o
	t.m.orders[o.ID] = &cp
	return nil
}

func (t *memTx) InsertOrderItems(_ context.Context, orderID uuid.UUID, items []domain.OrderItem) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.orders[orderID].Items = append([]domain.OrderItem(nil), items...)
	return nil
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return t.m.GetOrder(ctx, id)
}

func (t *memTx) UpdateOrderStatus(_ context.Context, id uuid.UUID, status domain.OrderStatus) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	o, ok := t.m.orders[id]
	if !ok {
		return repository.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (t *memTx) InsertPayment(_ context.Context, p *domain.Payment) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.payments = append(t.m.payments, p)
	return nil
}

func (t *memTx) InsertOutboxEvent(_ context.Context, e *repository.OutboxEvent) error {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	t.m.events = append(t.m.events, e)
	return nil
}

// reviews

func (m *memStore) CreateReview(_ context.Context, r *domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.reviews {
		if existing.ProductID == r.ProductID && existing.UserID == r.UserID {
			return repository.ErrReviewExists
		}
	}
	r.ID = m.id()
	cp := *r
	m.reviews[r.ID] = &cp
	return nil
}

func (m *memStore) GetReview(_ context.Context, id int64) (*domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok {
		return nil, repository.ErrReviewNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) ListReviewsByProduct(_ context.Context, productID int64, _ domain.Page) ([]*domain.Review, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Review
	for _, r := range m.reviews {
		if r.ProductID == productID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) ReviewSummary(_ context.Context, productID int64) (domain.ReviewSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var s domain.ReviewSummary
	sum := 0
	for _, r := range m.reviews {
		if r.ProductID == productID {
			s.Count++
			sum += r.Rating
		}
	}
	if s.Count > 0 {
		s.Average = float64(sum) / float64(s.Count)
	}
	return s, nil
}

func (m *memStore) UpdateReview(_ context.Context, r *domain.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[r.ID]; !ok {
		return repository.ErrReviewNotFound
	}
	cp := *r
	m.reviews[r.ID] = &cp
	return nil
}

func (m *memStore) DeleteReview(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reviews[id]; !ok {
		return repository.ErrReviewNotFound
	}
	delete(m.reviews, id)
	return nil
}

// caches

type memCartCache struct {
	mu       sync.Mutex
	entries  map[int64]*domain.Cart
	versions map[int64]int64
	deletes  int
}

func newMemCartCache() *memCartCache {
	return &memCartCache{entries: map[int64]*domain.Cart{}, versions: map[int64]int64{}}
}

func (c *memCartCache) Get(_ context.Context, userID int64) (*domain.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cart, ok := c.entries[userID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (c *memCartCache) Version(_ context.Context, userID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[userID], nil
}

func (c *memCartCache) Set(_ context.Context, userID, version int64, cart *domain.Cart) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.versions[userID] != version {
		return cache.ErrStaleFill
	}
	c.entries[userID] = cart
	return nil
}

func (c *memCartCache) Delete(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[userID]++
	delete(c.entries, userID)
	c.deletes++
	return nil
}

type memProductCache struct {
	mu      sync.Mutex
	entries map[int64]*domain.Product
}

func newMemProductCache() *memProductCache {
	return &memProductCache{entries: map[int64]*domain.Product{}}
}

func (c *memProductCache) Get(_ context.Context, id int64) (*domain.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.entries[id]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return p, nil
}

func (c *memProductCache) Set(_ context.Context, p *domain.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[p.ID] = p
	return nil
}

func (c *memProductCache) Delete(_ context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.entries, id)
	}
	return nil
}
