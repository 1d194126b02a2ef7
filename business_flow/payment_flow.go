package businessflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jashub/parcelhub/app/dto"
	"github.com/jashub/parcelhub/app/services"
	"github.com/jashub/parcelhub/models"
	"github.com/jashub/parcelhub/pricing"
	"github.com/jashub/parcelhub/repository"
	"github.com/jashub/parcelhub/utils"
)

// PaymentFlow handles the simulated checkout that collects a parcel
type PaymentFlow interface {
	Pay(ctx context.Context, req *dto.PayParcelRequest, metadata *ClientMetadata) (*dto.PayParcelResponse, error)
	VerifyReceipt(ctx context.Context, req *dto.VerifyReceiptRequest, metadata *ClientMetadata) (*dto.VerifyReceiptResponse, error)
	AdminListPayments(ctx context.Context, req *dto.AdminListPaymentsRequest, metadata *ClientMetadata) (*dto.AdminListPaymentsResponse, error)
}

// PaymentFlowImpl implements the payment business flow
type PaymentFlowImpl struct {
	tx          repository.Transactor
	parcelRepo  repository.ParcelRepository
	eventRepo   repository.ParcelEventRepository
	paymentRepo repository.ParcelPaymentRepository
	cache       services.ParcelCache
	locker      services.Locker
	codes       services.PickupCodeService
	receipts    services.ReceiptService
	calc        pricing.Calculator
	metrics     services.ParcelMetrics
}

// NewPaymentFlow creates a new payment flow instance
func NewPaymentFlow(
	tx repository.Transactor,
	parcelRepo repository.ParcelRepository,
	eventRepo repository.ParcelEventRepository,
	paymentRepo repository.ParcelPaymentRepository,
	cache services.ParcelCache,
	locker services.Locker,
	codes services.PickupCodeService,
	receipts services.ReceiptService,
	calc pricing.Calculator,
	metrics services.ParcelMetrics,
) PaymentFlow {
	if cache == nil {
		cache = services.NoopParcelCache{}
	}
	if locker == nil {
		locker = services.NewLocalLocker()
	}
	if metrics == nil {
		metrics = services.NoopParcelMetrics{}
	}
	return &PaymentFlowImpl{
		tx:          tx,
		parcelRepo:  parcelRepo,
		eventRepo:   eventRepo,
		paymentRepo: paymentRepo,
		cache:       cache,
		locker:      locker,
		codes:       codes,
		receipts:    receipts,
		calc:        calc,
		metrics:     metrics,
	}
}

// Pay prices the parcel at the moment of payment, records the snapshot and marks it collected.
// A parcel can be collected once; the second attempt fails with ErrParcelAlreadyCollected.
func (p *PaymentFlowImpl) Pay(ctx context.Context, req *dto.PayParcelRequest, metadata *ClientMetadata) (*dto.PayParcelResponse, error) {
	tn := utils.NormalizeTrackingNumber(req.TrackingNumber)

	unlock, acquired, err := p.locker.TryLock(ctx, utils.CollectLockKey+tn, utils.CollectLockTTL)
	if err != nil {
		return nil, NewBusinessError("COLLECT_LOCK_FAILED", "Failed to lock parcel for collection", err)
	}
	if !acquired {
		return nil, ErrCollectionInProgress
	}
	defer unlock()

	// read from the database: the cached record carries no pickup code hash
	parcel, err := p.parcelRepo.ByTrackingNumber(ctx, tn)
	if err != nil {
		return nil, NewBusinessError("PAY_PARCEL_FAILED", "Failed to load parcel", err)
	}
	if parcel == nil {
		return nil, ErrParcelNotFound
	}
	switch parcel.Status {
	case models.ParcelStatusCollected:
		return nil, ErrParcelAlreadyCollected
	case models.ParcelStatusReturned:
		return nil, ErrParcelReturned
	}

	if !p.codes.Verify(parcel.PickupCodeHash, strings.TrimSpace(req.PickupCode)) {
		return nil, ErrInvalidPickupCode
	}

	now := p.calc.Now()
	price := p.calc.QuoteAt(parcel.Categories, parcel.BasePrice, parcel.CreatedAt, now)
	payerName := strings.TrimSpace(req.PayerName)

	payment := &models.ParcelPayment{
		ParcelID:       parcel.ID,
		TrackingNumber: parcel.TrackingNumber,
		Method:         req.Method,
		PayerName:      payerName,
		PayerStudentID: trimPtr(req.PayerStudentID),
		BasePrice:      price.BasePrice,
		OverdueCharge:  price.OverdueCharge,
		TotalPrice:     price.TotalPrice,
		DaysHeld:       price.DaysHeld,
		ReceiptID:      uuid.NewString(),
		PaidAt:         now,
	}

	err = p.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		ok, err := p.parcelRepo.MarkCollected(txCtx, parcel.ID, payerName, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrParcelAlreadyCollected
		}
		if err := p.paymentRepo.Save(txCtx, payment); err != nil {
			return err
		}
		return p.eventRepo.Save(txCtx, &models.ParcelEvent{
			ParcelID:  parcel.ID,
			Status:    models.ParcelStatusCollected,
			Note:      fmt.Sprintf("Collected by %s, paid %s %.2f by %s", payerName, utils.Currency, price.TotalPrice, req.Method),
			Actor:     actorOf(metadata, "recipient"),
			CreatedAt: now,
		})
	})
	if err != nil {
		if errors.Is(err, ErrParcelAlreadyCollected) || repository.IsDuplicateKey(err) {
			return nil, ErrParcelAlreadyCollected
		}
		return nil, NewBusinessError("PAY_PARCEL_FAILED", "Failed to record payment", err)
	}

	if err := p.cache.Invalidate(ctx, parcel.TrackingNumber); err != nil {
		log.Printf("parcel cache invalidation failed for %s: %v", parcel.TrackingNumber, err)
	}
	p.metrics.ParcelCollected(req.Method, price.OverdueCharge, price.TotalPrice)

	receipt, err := p.receipts.Issue(services.ReceiptClaims{
		ReceiptID:      payment.ReceiptID,
		TrackingNumber: parcel.TrackingNumber,
		PayerName:      payerName,
		Method:         req.Method,
		BasePrice:      price.BasePrice,
		OverdueCharge:  price.OverdueCharge,
		TotalPrice:     price.TotalPrice,
		DaysHeld:       price.DaysHeld,
		Currency:       utils.Currency,
		PaidAt:         now,
	})
	if err != nil {
		// the payment is committed; answer without a signed receipt
		log.Printf("receipt signing failed for %s: %v", payment.ReceiptID, err)
	}

	return &dto.PayParcelResponse{
		Message:        "Payment successful, parcel collected",
		ReceiptID:      payment.ReceiptID,
		Receipt:        receipt,
		TrackingNumber: parcel.TrackingNumber,
		Status:         models.ParcelStatusCollected,
		Method:         req.Method,
		Pricing:        ToPricingDTO(price, now, true),
		PaidAt:         now.UTC().Format(time.RFC3339),
	}, nil
}

func (p *PaymentFlowImpl) VerifyReceipt(ctx context.Context, req *dto.VerifyReceiptRequest, metadata *ClientMetadata) (*dto.VerifyReceiptResponse, error) {
	claims, err := p.receipts.Verify(strings.TrimSpace(req.Receipt))
	if err != nil {
		if errors.Is(err, services.ErrReceiptExpired) {
			return nil, ErrReceiptExpired
		}
		return nil, NewBusinessError("INVALID_RECEIPT", "Receipt could not be verified", errors.Join(ErrInvalidReceipt, err))
	}

	return &dto.VerifyReceiptResponse{
		Valid:          true,
		ReceiptID:      claims.ReceiptID,
		TrackingNumber: claims.TrackingNumber,
		PayerName:      claims.PayerName,
		Method:         claims.Method,
		BasePrice:      claims.BasePrice,
		OverdueCharge:  claims.OverdueCharge,
		TotalPrice:     claims.TotalPrice,
		DaysHeld:       claims.DaysHeld,
		Currency:       claims.Currency,
		PaidAt:         claims.PaidAt.UTC().Format(time.RFC3339),
		ExpiresAt:      claims.ExpiresAt.UTC().Format(time.RFC3339),
	}, nil
}

func (p *PaymentFlowImpl) AdminListPayments(ctx context.Context, req *dto.AdminListPaymentsRequest, metadata *ClientMetadata) (resp *dto.AdminListPaymentsResponse, err error) {
	defer func() {
		if err != nil && !IsInvalidPageSize(err) && !IsStartDateAfterEndDate(err) {
			err = NewBusinessError("ADMIN_LIST_PAYMENTS_FAILED", "Failed to list payments", err)
		}
	}()

	page, pageSize, err := pagination(req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}
	if req.PaidFrom != nil && req.PaidTo != nil && req.PaidFrom.After(*req.PaidTo) {
		return nil, ErrStartDateAfterEndDate
	}

	filter := models.ParcelPaymentFilter{
		Method:     nonEmpty(req.Method),
		PaidAfter:  req.PaidFrom,
		PaidBefore: req.PaidTo,
	}
	if tn := nonEmpty(req.TrackingNumber); tn != nil {
		normalized := utils.NormalizeTrackingNumber(*tn)
		filter.TrackingNumber = &normalized
	}

	total, err := p.paymentRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows, err := p.paymentRepo.ByFilter(ctx, filter, "paid_at DESC, id DESC", int(pageSize), offsetOf(page, pageSize))
	if err != nil {
		return nil, err
	}
	totals, err := p.paymentRepo.Totals(ctx, filter)
	if err != nil {
		return nil, err
	}

	items := make([]dto.PaymentDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, ToPaymentDTO(row))
	}

	return &dto.AdminListPaymentsResponse{
		Message:    "Payments retrieved successfully",
		Items:      items,
		Totals:     ToRevenueDTO(totals),
		Pagination: dto.NewPaginationInfo(total, page, pageSize),
	}, nil
}
