package businessflow

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jashub/parcelhub/models"
	"github.com/jashub/parcelhub/pricing"
	"github.com/jashub/parcelhub/repository"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

var testNow = time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC)

func fixedCalc() pricing.Calculator {
	return pricing.NewCalculator(func() time.Time { return testNow })
}

func daysBefore(d int) time.Time {
	return testNow.Add(-time.Duration(d) * 24 * time.Hour)
}

// store is an in-memory database shared by the fake repositories
type store struct {
	mu       sync.Mutex
	nextID   uint
	parcels  map[uint]*models.Parcel
	events   []*models.ParcelEvent
	payments map[uint]*models.ParcelPayment
	messages map[uint]*models.ContactMessage
	failNext error
}

func newStore() *store {
	return &store{
		parcels:  map[uint]*models.Parcel{},
		payments: map[uint]*models.ParcelPayment{},
		messages: map[uint]*models.ContactMessage{},
	}
}

func (s *store) id() uint {
	s.nextID++
	return s.nextID
}

func (s *store) takeFailure() error {
	err := s.failNext
	s.failNext = nil
	return err
}

// addParcel stores a parcel directly, bypassing the flows
func (s *store) addParcel(p *models.Parcel) *models.Parcel {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	if p.Status == "" {
		p.Status = models.ParcelStatusReceived
	}
	if p.Categories == nil {
		p.Categories = pq.StringArray{}
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	cp := *p
	s.parcels[p.ID] = &cp
	return p
}

func (s *store) parcel(id uint) *models.Parcel {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parcels[id]
	if !ok {
		return nil
	}
	cp := *p
	return &cp
}

func (s *store) eventsOf(parcelID uint) []*models.ParcelEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.ParcelEvent
	for _, e := range s.events {
		if e.ParcelID == parcelID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out
}

// fakeTx runs fn directly; a failing fn rolls back parcel and payment writes made inside it
type fakeTx struct{ s *store }

func (t fakeTx) WithinTransaction(ctx context.Context, fn func(context.Context) error) error {
	t.s.mu.Lock()
	parcels := make(map[uint]models.Parcel, len(t.s.parcels))
	for id, p := range t.s.parcels {
		parcels[id] = *p
	}
	payments := make(map[uint]*models.ParcelPayment, len(t.s.payments))
	for id, p := range t.s.payments {
		payments[id] = p
	}
	events := len(t.s.events)
	t.s.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.s.mu.Lock()
		t.s.parcels = map[uint]*models.Parcel{}
		for id, p := range parcels {
			cp := p
			t.s.parcels[id] = &cp
		}
		t.s.payments = payments
		t.s.events = t.s.events[:events]
		t.s.mu.Unlock()
		return err
	}
	return nil
}

var _ repository.Transactor = fakeTx{}

type fakeParcelRepo struct{ s *store }

var _ repository.ParcelRepository = (*fakeParcelRepo)(nil)

func (r *fakeParcelRepo) ByID(_ context.Context, id uint) (*models.Parcel, error) {
	return r.s.parcel(id), nil
}

func (r *fakeParcelRepo) ByUUID(_ context.Context, id string) (*models.Parcel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.parcels {
		if p.UUID.String() == id {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeParcelRepo) ByTrackingNumber(_ context.Context, tn string) (*models.Parcel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.takeFailure(); err != nil {
		return nil, err
	}
	for _, p := range r.s.parcels {
		if p.TrackingNumber == tn {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func matchParcel(p *models.Parcel, f models.ParcelFilter) bool {
	switch {
	case f.ID != nil && p.ID != *f.ID:
		return false
	case f.Status != nil && p.Status != *f.Status:
		return false
	case f.ExcludeStatus != nil && p.Status == *f.ExcludeStatus:
		return false
	case f.RecipientEmail != nil && !strings.EqualFold(p.RecipientEmail, *f.RecipientEmail):
		return false
	case f.CourierName != nil && p.CourierName != *f.CourierName:
		return false
	case f.TrackingNumberPrefix != nil && !strings.HasPrefix(p.TrackingNumber, strings.ToUpper(*f.TrackingNumberPrefix)):
		return false
	case f.CreatedAfter != nil && p.CreatedAt.Before(*f.CreatedAfter):
		return false
	case f.CreatedBefore != nil && p.CreatedAt.After(*f.CreatedBefore):
		return false
	}
	if f.Category != nil {
		for _, c := range p.Categories {
			if c == *f.Category {
				return true
			}
		}
		return false
	}
	return true
}

func (r *fakeParcelRepo) filtered(f models.ParcelFilter, orderBy string) []*models.Parcel {
	var out []*models.Parcel
	for _, p := range r.s.parcels {
		if matchParcel(p, f) {
			cp := *p
			out = append(out, &cp)
		}
	}
	asc := strings.HasPrefix(orderBy, "created_at ASC")
	sort.Slice(out, func(i, j int) bool {
		if asc {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *fakeParcelRepo) ByFilter(_ context.Context, f models.ParcelFilter, orderBy string, limit, offset int) ([]*models.Parcel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.filtered(f, orderBy)
	if offset >= len(out) {
		return []*models.Parcel{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeParcelRepo) Save(_ context.Context, p *models.Parcel) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.parcels {
		if existing.TrackingNumber == p.TrackingNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	p.ID = r.s.id()
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	cp := *p
	r.s.parcels[p.ID] = &cp
	return nil
}

func (r *fakeParcelRepo) SaveBatch(ctx context.Context, ps []*models.Parcel) error {
	for _, p := range ps {
		if err := r.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeParcelRepo) Count(_ context.Context, f models.ParcelFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.filtered(f, ""))), nil
}

func (r *fakeParcelRepo) Exists(ctx context.Context, f models.ParcelFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

func (r *fakeParcelRepo) Update(_ context.Context, p *models.Parcel) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.parcels[p.ID]
	if !ok {
		return false, errors.New("parcel not found")
	}
	if cur.Status == models.ParcelStatusCollected {
		return false, nil
	}
	status, hash, collectedAt, collectedBy := cur.Status, cur.PickupCodeHash, cur.CollectedAt, cur.CollectedBy
	cp := *p
	cp.Status, cp.PickupCodeHash, cp.CollectedAt, cp.CollectedBy = status, hash, collectedAt, collectedBy
	r.s.parcels[p.ID] = &cp
	return true, nil
}

func (r *fakeParcelRepo) UpdateStatus(_ context.Context, id uint, from, to string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.parcels[id]
	if !ok || p.Status != from {
		return false, nil
	}
	p.Status = to
	return true, nil
}

func (r *fakeParcelRepo) MarkCollected(_ context.Context, id uint, by string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.parcels[id]
	if !ok || p.Status != models.ParcelStatusReceived {
		return false, nil
	}
	p.Status = models.ParcelStatusCollected
	p.CollectedBy = &by
	p.CollectedAt = &at
	return true, nil
}

func (r *fakeParcelRepo) UpdatePickupCodeHash(_ context.Context, id uint, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.parcels[id].PickupCodeHash = hash
	return nil
}

func (r *fakeParcelRepo) UpdateReminderMonths(_ context.Context, id uint, months int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p := r.s.parcels[id]; p != nil && months > p.ReminderMonths {
		p.ReminderMonths = months
	}
	return nil
}

func (r *fakeParcelRepo) DeleteUncollected(_ context.Context, id uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.parcels[id]
	if !ok || p.Status == models.ParcelStatusCollected {
		return false, nil
	}
	delete(r.s.parcels, id)
	return true, nil
}

func (r *fakeParcelRepo) ListOverdueCandidates(ctx context.Context, before time.Time, after *models.ParcelCursor, limit int) ([]*models.Parcel, error) {
	status := models.ParcelStatusReceived
	rows, err := r.ByFilter(ctx, models.ParcelFilter{Status: &status, CreatedBefore: &before}, "created_at ASC, id ASC", 0, 0)
	if err != nil {
		return nil, err
	}
	var out []*models.Parcel
	for _, p := range rows {
		if after != nil && !afterCursor(p, after) {
			continue
		}
		out = append(out, p)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func afterCursor(p *models.Parcel, c *models.ParcelCursor) bool {
	return p.CreatedAt.After(c.CreatedAt) || (p.CreatedAt.Equal(c.CreatedAt) && p.ID > c.ID)
}

func (r *fakeParcelRepo) StatusCounts(_ context.Context, from, to *time.Time) ([]models.ParcelStatusCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[string]int64{}
	for _, p := range r.filtered(models.ParcelFilter{CreatedAfter: from, CreatedBefore: to}, "") {
		counts[p.Status]++
	}
	var out []models.ParcelStatusCount
	for s, n := range counts {
		out = append(out, models.ParcelStatusCount{Status: s, Count: n})
	}
	return out, nil
}

func (r *fakeParcelRepo) CourierCounts(_ context.Context, from, to *time.Time) ([]models.CourierCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	counts := map[string]int64{}
	for _, p := range r.filtered(models.ParcelFilter{CreatedAfter: from, CreatedBefore: to}, "") {
		counts[p.CourierName]++
	}
	var out []models.CourierCount
	for c, n := range counts {
		out = append(out, models.CourierCount{CourierName: c, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

type fakeEventRepo struct{ s *store }

func (r *fakeEventRepo) Save(_ context.Context, e *models.ParcelEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e.ID = r.s.id()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = testNow
	}
	cp := *e
	r.s.events = append(r.s.events, &cp)
	return nil
}

func (r *fakeEventRepo) ListByParcel(_ context.Context, parcelID uint) ([]*models.ParcelEvent, error) {
	return r.s.eventsOf(parcelID), nil
}

type fakePaymentRepo struct{ s *store }

var _ repository.ParcelPaymentRepository = (*fakePaymentRepo)(nil)

func matchPayment(p *models.ParcelPayment, f models.ParcelPaymentFilter) bool {
	switch {
	case f.ParcelID != nil && p.ParcelID != *f.ParcelID:
		return false
	case f.TrackingNumber != nil && p.TrackingNumber != *f.TrackingNumber:
		return false
	case f.Method != nil && p.Method != *f.Method:
		return false
	case f.PaidAfter != nil && p.PaidAt.Before(*f.PaidAfter):
		return false
	case f.PaidBefore != nil && p.PaidAt.After(*f.PaidBefore):
		return false
	}
	return true
}

func (r *fakePaymentRepo) list(f models.ParcelPaymentFilter) []*models.ParcelPayment {
	var out []*models.ParcelPayment
	for _, p := range r.s.payments {
		if matchPayment(p, f) {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *fakePaymentRepo) ByID(_ context.Context, id uint) (*models.ParcelPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p, ok := r.s.payments[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, nil
}

func (r *fakePaymentRepo) ByFilter(_ context.Context, f models.ParcelPaymentFilter, _ string, limit, offset int) ([]*models.ParcelPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.list(f)
	if offset >= len(out) {
		return []*models.ParcelPayment{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakePaymentRepo) Save(_ context.Context, p *models.ParcelPayment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.payments {
		if existing.ParcelID == p.ParcelID {
			return gorm.ErrDuplicatedKey
		}
	}
	p.ID = r.s.id()
	if p.UUID == uuid.Nil {
		p.UUID = uuid.New()
	}
	cp := *p
	r.s.payments[p.ID] = &cp
	return nil
}

func (r *fakePaymentRepo) SaveBatch(ctx context.Context, ps []*models.ParcelPayment) error {
	for _, p := range ps {
		if err := r.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakePaymentRepo) Count(_ context.Context, f models.ParcelPaymentFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.list(f))), nil
}

func (r *fakePaymentRepo) Exists(ctx context.Context, f models.ParcelPaymentFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

func (r *fakePaymentRepo) ByParcelID(ctx context.Context, parcelID uint) (*models.ParcelPayment, error) {
	rows, err := r.ByFilter(ctx, models.ParcelPaymentFilter{ParcelID: &parcelID}, "", 1, 0)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

func (r *fakePaymentRepo) ByParcelIDs(_ context.Context, ids []uint) (map[uint]*models.ParcelPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := map[uint]bool{}
	for _, id := range ids {
		want[id] = true
	}
	out := map[uint]*models.ParcelPayment{}
	for _, p := range r.s.payments {
		if want[p.ParcelID] {
			cp := *p
			out[p.ParcelID] = &cp
		}
	}
	return out, nil
}

func (r *fakePaymentRepo) Totals(_ context.Context, f models.ParcelPaymentFilter) (*models.RevenueTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := &models.RevenueTotals{}
	for _, p := range r.list(f) {
		t.Count++
		t.BaseTotal += p.BasePrice
		t.OverdueTotal += p.OverdueCharge
		t.RevenueTotal += p.TotalPrice
	}
	return t, nil
}

type fakeContactRepo struct{ s *store }

var _ repository.ContactMessageRepository = (*fakeContactRepo)(nil)

func (r *fakeContactRepo) list(f models.ContactMessageFilter) []*models.ContactMessage {
	var out []*models.ContactMessage
	for _, m := range r.s.messages {
		if f.Email != nil && m.Email != *f.Email {
			continue
		}
		if f.Unread != nil && (m.ReadAt == nil) != *f.Unread {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (r *fakeContactRepo) ByID(_ context.Context, id uint) (*models.ContactMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.messages[id]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, nil
}

func (r *fakeContactRepo) ByUUID(_ context.Context, id string) (*models.ContactMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.messages {
		if m.UUID.String() == id {
			cp := *m
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeContactRepo) ByFilter(_ context.Context, f models.ContactMessageFilter, _ string, limit, offset int) ([]*models.ContactMessage, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.list(f)
	if offset >= len(out) {
		return []*models.ContactMessage{}, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeContactRepo) Save(_ context.Context, m *models.ContactMessage) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = r.s.id()
	if m.UUID == uuid.Nil {
		m.UUID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = testNow
	}
	cp := *m
	r.s.messages[m.ID] = &cp
	return nil
}

func (r *fakeContactRepo) SaveBatch(ctx context.Context, ms []*models.ContactMessage) error {
	for _, m := range ms {
		if err := r.Save(ctx, m); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeContactRepo) Count(_ context.Context, f models.ContactMessageFilter) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return int64(len(r.list(f))), nil
}

func (r *fakeContactRepo) Exists(ctx context.Context, f models.ContactMessageFilter) (bool, error) {
	n, err := r.Count(ctx, f)
	return n > 0, err
}

func (r *fakeContactRepo) MarkRead(_ context.Context, id uint, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if m, ok := r.s.messages[id]; ok && m.ReadAt == nil {
		m.ReadAt = &at
	}
	return nil
}

func (r *fakeContactRepo) Delete(_ context.Context, id uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.messages[id]; !ok {
		return false, nil
	}
	delete(r.s.messages, id)
	return true, nil
}

// plainCodes is a PickupCodeService without bcrypt so tests stay fast
type plainCodes struct{ next string }

func (c *plainCodes) Generate() (string, string, error) {
	code := c.next
	if code == "" {
		code = "123456"
	}
	return code, "hash:" + code, nil
}

func (c *plainCodes) Verify(hash, code string) bool {
	return hash == "hash:"+code
}

// recordingMetrics counts calls per metric
type recordingMetrics struct {
	mu        sync.Mutex
	received  []string
	collected []string
	lookups   []string
	reminders int
}

func (m *recordingMetrics) ParcelReceived(courier string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, courier)
}

func (m *recordingMetrics) ParcelCollected(method string, _, _ float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collected = append(m.collected, method)
}

func (m *recordingMetrics) TrackingLookup(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups = append(m.lookups, result)
}

func (m *recordingMetrics) ReminderSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reminders++
}

// memCache is a ParcelCache backed by a map
type memCache struct {
	mu          sync.Mutex
	items       map[string]models.Parcel
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{items: map[string]models.Parcel{}}
}

func (c *memCache) Get(_ context.Context, tn string) (*models.Parcel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[tn]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *memCache) Set(_ context.Context, p *models.Parcel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *p
	cp.PickupCodeHash = ""
	c.items[p.TrackingNumber] = cp
	return nil
}

func (c *memCache) Invalidate(_ context.Context, tns ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tn := range tns {
		delete(c.items, tn)
		c.invalidated = append(c.invalidated, tn)
	}
	return nil
}

func (c *memCache) has(tn string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[tn]
	return ok
}

func pricingAt(now time.Time) pricing.Calculator {
	return pricing.NewCalculator(func() time.Time { return now })
}
