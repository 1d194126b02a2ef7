package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/jashub/parcelhub/models"
	"github.com/jashub/parcelhub/utils"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// TestPickupCode is the plain pickup code behind every fixture parcel's hash
const TestPickupCode = "246810"

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// ParcelOption tweaks a fixture parcel before it is inserted
type ParcelOption func(*models.Parcel)

func WithCategories(categories ...string) ParcelOption {
	return func(p *models.Parcel) { p.Categories = pq.StringArray(categories) }
}

func WithStatus(status string) ParcelOption {
	return func(p *models.Parcel) { p.Status = status }
}

func WithCourier(courier string) ParcelOption {
	return func(p *models.Parcel) { p.CourierName = courier }
}

func WithRecipientEmail(email string) ParcelOption {
	return func(p *models.Parcel) { p.RecipientEmail = email }
}

func WithBasePrice(price float64) ParcelOption {
	return func(p *models.Parcel) { p.BasePrice = utils.ToPtr(price) }
}

// ReceivedDaysAgo backdates the intake timestamp
func ReceivedDaysAgo(days int) ParcelOption {
	return func(p *models.Parcel) {
		p.CreatedAt = utils.UTCNow().Add(-time.Duration(days) * 24 * time.Hour)
		p.UpdatedAt = p.CreatedAt
	}
}

// CreateTestParcel inserts a Received 1kg parcel with a random tracking number
func (tf *TestFixtures) CreateTestParcel(opts ...ParcelOption) (*models.Parcel, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPickupCode), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash pickup code: %w", err)
	}

	suffix := fmt.Sprintf("%09d", rand.Intn(900000000)+100000000)
	parcel := &models.Parcel{
		TrackingNumber: "JT" + suffix,
		RecipientName:  "Nur Aisyah",
		RecipientEmail: fmt.Sprintf("student.%s@campus.edu", suffix),
		RecipientPhone: utils.ToPtr("+60123456789"),
		CourierName:    "J&T Express",
		Categories:     pq.StringArray{"1kg"},
		Status:         models.ParcelStatusReceived,
		PickupCodeHash: string(hash),
	}
	for _, opt := range opts {
		opt(parcel)
	}

	if err := tf.DB.DB.Create(parcel).Error; err != nil {
		return nil, fmt.Errorf("failed to create test parcel: %w", err)
	}
	return parcel, nil
}

// CreateTestPayment records a collection payment for parcel and marks it Collected
func (tf *TestFixtures) CreateTestPayment(parcel *models.Parcel, method string, base, overdue float64, paidAt time.Time) (*models.ParcelPayment, error) {
	payment := &models.ParcelPayment{
		ParcelID:       parcel.ID,
		TrackingNumber: parcel.TrackingNumber,
		Method:         method,
		PayerName:      parcel.RecipientName,
		BasePrice:      base,
		OverdueCharge:  overdue,
		TotalPrice:     base + overdue,
		PaidAt:         paidAt,
	}
	if err := tf.DB.DB.Create(payment).Error; err != nil {
		return nil, fmt.Errorf("failed to create test payment: %w", err)
	}

	err := tf.DB.DB.Model(&models.Parcel{}).Where("id = ?", parcel.ID).Updates(map[string]any{
		"status":       models.ParcelStatusCollected,
		"collected_by": parcel.RecipientName,
		"collected_at": paidAt,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to mark test parcel collected: %w", err)
	}
	parcel.Status = models.ParcelStatusCollected
	parcel.CollectedAt = &paidAt
	return payment, nil
}

// CreateTestContactMessage inserts an unread contact message
func (tf *TestFixtures) CreateTestContactMessage(email string) (*models.ContactMessage, error) {
	msg := &models.ContactMessage{
		Name:      "Test Sender",
		Email:     email,
		Subject:   "Parcel question",
		Message:   "Is my parcel on the shelf yet?",
		IPAddress: utils.ToPtr("127.0.0.1"),
	}
	if err := tf.DB.DB.Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to create test contact message: %w", err)
	}
	return msg, nil
}
