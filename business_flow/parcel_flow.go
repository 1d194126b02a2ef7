package businessflow

import (
	"context"
	"log"
	"strings"

	"github.com/jashub/parcelhub/app/dto"
	"github.com/jashub/parcelhub/app/services"
	"github.com/jashub/parcelhub/models"
	"github.com/jashub/parcelhub/pricing"
	"github.com/jashub/parcelhub/repository"
	"github.com/jashub/parcelhub/utils"
)

// ParcelFlow is the student facing side of the hub: tracking and price quotes
type ParcelFlow interface {
	Track(ctx context.Context, trackingNumber string, metadata *ClientMetadata) (*dto.TrackParcelResponse, error)
	Quote(ctx context.Context, trackingNumber string, metadata *ClientMetadata) (*dto.QuoteResponse, error)
	ListByRecipient(ctx context.Context, req *dto.ListRecipientParcelsRequest, metadata *ClientMetadata) (*dto.ListRecipientParcelsResponse, error)
}

// ParcelFlowImpl implements ParcelFlow
type ParcelFlowImpl struct {
	parcelRepo  repository.ParcelRepository
	eventRepo   repository.ParcelEventRepository
	paymentRepo repository.ParcelPaymentRepository
	cache       services.ParcelCache
	calc        pricing.Calculator
	metrics     services.ParcelMetrics
}

func NewParcelFlow(
	parcelRepo repository.ParcelRepository,
	eventRepo repository.ParcelEventRepository,
	paymentRepo repository.ParcelPaymentRepository,
	cache services.ParcelCache,
	calc pricing.Calculator,
	metrics services.ParcelMetrics,
) ParcelFlow {
	if cache == nil {
		cache = services.NoopParcelCache{}
	}
	if metrics == nil {
		metrics = services.NoopParcelMetrics{}
	}
	return &ParcelFlowImpl{
		parcelRepo:  parcelRepo,
		eventRepo:   eventRepo,
		paymentRepo: paymentRepo,
		cache:       cache,
		calc:        calc,
		metrics:     metrics,
	}
}

// loadByTracking reads through the cache. Only the parcel record is cached; prices are computed per request.
func (f *ParcelFlowImpl) loadByTracking(ctx context.Context, trackingNumber string) (*models.Parcel, error) {
	tn := utils.NormalizeTrackingNumber(trackingNumber)
	if tn == "" {
		return nil, ErrParcelNotFound
	}

	cached, err := f.cache.Get(ctx, tn)
	switch {
	case err != nil:
		log.Printf("parcel cache read failed for %s: %v", tn, err)
		f.metrics.TrackingLookup(services.CacheError)
	case cached != nil:
		f.metrics.TrackingLookup(services.CacheHit)
		return cached, nil
	default:
		f.metrics.TrackingLookup(services.CacheMiss)
	}

	parcel, err := f.parcelRepo.ByTrackingNumber(ctx, tn)
	if err != nil {
		return nil, err
	}
	if parcel == nil {
		return nil, ErrParcelNotFound
	}

	if err := f.cache.Set(ctx, parcel); err != nil {
		log.Printf("parcel cache write failed for %s: %v", tn, err)
	}
	return parcel, nil
}

func (f *ParcelFlowImpl) paymentFor(ctx context.Context, p *models.Parcel) (*models.ParcelPayment, error) {
	if !p.IsCollected() {
		return nil, nil
	}
	return f.paymentRepo.ByParcelID(ctx, p.ID)
}

func (f *ParcelFlowImpl) Track(ctx context.Context, trackingNumber string, metadata *ClientMetadata) (*dto.TrackParcelResponse, error) {
	parcel, err := f.loadByTracking(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}

	events, err := f.eventRepo.ListByParcel(ctx, parcel.ID)
	if err != nil {
		return nil, NewBusinessError("TRACK_PARCEL_FAILED", "Failed to load parcel timeline", err)
	}
	if events == nil {
		events = []*models.ParcelEvent{}
	}

	payment, err := f.paymentFor(ctx, parcel)
	if err != nil {
		return nil, NewBusinessError("TRACK_PARCEL_FAILED", "Failed to load parcel payment", err)
	}

	resp := ToTrackParcelResponse(parcel, events, priceParcel(f.calc, parcel, payment, f.calc.Now()))
	return &resp, nil
}

func (f *ParcelFlowImpl) Quote(ctx context.Context, trackingNumber string, metadata *ClientMetadata) (*dto.QuoteResponse, error) {
	parcel, err := f.loadByTracking(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}

	payment, err := f.paymentFor(ctx, parcel)
	if err != nil {
		return nil, NewBusinessError("QUOTE_PARCEL_FAILED", "Failed to load parcel payment", err)
	}

	return &dto.QuoteResponse{
		TrackingNumber: parcel.TrackingNumber,
		Status:         parcel.Status,
		Pricing:        priceParcel(f.calc, parcel, payment, f.calc.Now()),
	}, nil
}

func (f *ParcelFlowImpl) ListByRecipient(ctx context.Context, req *dto.ListRecipientParcelsRequest, metadata *ClientMetadata) (resp *dto.ListRecipientParcelsResponse, err error) {
	defer func() {
		if err != nil && !IsInvalidPageSize(err) {
			err = NewBusinessError("LIST_RECIPIENT_PARCELS_FAILED", "Failed to list parcels", err)
		}
	}()

	page, pageSize, err := pagination(req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.RecipientEmail))
	status := models.ParcelStatusReceived
	filter := models.ParcelFilter{RecipientEmail: &email, Status: &status}

	total, err := f.parcelRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows, err := f.parcelRepo.ByFilter(ctx, filter, "created_at ASC, id ASC", int(pageSize), offsetOf(page, pageSize))
	if err != nil {
		return nil, err
	}

	now := f.calc.Now()
	items := make([]dto.TrackParcelResponse, 0, len(rows))
	var due float64
	for _, p := range rows {
		price := priceParcel(f.calc, p, nil, now)
		due += price.TotalPrice
		items = append(items, ToTrackParcelResponse(p, nil, price))
	}

	return &dto.ListRecipientParcelsResponse{
		Message:    "Parcels retrieved successfully",
		Items:      items,
		TotalDue:   due,
		Pagination: dto.NewPaginationInfo(total, page, pageSize),
	}, nil
}
