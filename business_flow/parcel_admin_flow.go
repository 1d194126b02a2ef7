package businessflow

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/jashub/parcelhub/app/dto"
	"github.com/jashub/parcelhub/app/services"
	"github.com/jashub/parcelhub/config"
	"github.com/jashub/parcelhub/models"
	"github.com/jashub/parcelhub/pricing"
	"github.com/jashub/parcelhub/repository"
	"github.com/jashub/parcelhub/utils"
	"github.com/lib/pq"
)

// notifyTimeout bounds one arrival notification round (email then SMS)
const notifyTimeout = 20 * time.Second

// ParcelAdminFlow covers intake and management of parcels by hub staff
type ParcelAdminFlow interface {
	Receive(ctx context.Context, req *dto.ReceiveParcelRequest, metadata *ClientMetadata) (*dto.ReceiveParcelResponse, error)
	List(ctx context.Context, req *dto.AdminListParcelsRequest, metadata *ClientMetadata) (*dto.AdminListParcelsResponse, error)
	Get(ctx context.Context, uuid string, metadata *ClientMetadata) (*dto.ParcelResponse, error)
	Update(ctx context.Context, req *dto.UpdateParcelRequest, metadata *ClientMetadata) (*dto.ParcelResponse, error)
	UpdateStatus(ctx context.Context, req *dto.UpdateParcelStatusRequest, metadata *ClientMetadata) (*dto.ParcelResponse, error)
	Delete(ctx context.Context, uuid string, metadata *ClientMetadata) (*dto.DeleteParcelResponse, error)
	RegeneratePickupCode(ctx context.Context, uuid string, metadata *ClientMetadata) (*dto.RegeneratePickupCodeResponse, error)
}

// ParcelAdminFlowImpl implements ParcelAdminFlow
type ParcelAdminFlowImpl struct {
	tx          repository.Transactor
	parcelRepo  repository.ParcelRepository
	eventRepo   repository.ParcelEventRepository
	paymentRepo repository.ParcelPaymentRepository
	cache       services.ParcelCache
	codes       services.PickupCodeService
	notifier    services.NotificationService
	calc        pricing.Calculator
	metrics     services.ParcelMetrics
	hubCfg      config.NotificationConfig
}

func NewParcelAdminFlow(
	tx repository.Transactor,
	parcelRepo repository.ParcelRepository,
	eventRepo repository.ParcelEventRepository,
	paymentRepo repository.ParcelPaymentRepository,
	cache services.ParcelCache,
	codes services.PickupCodeService,
	notifier services.NotificationService,
	calc pricing.Calculator,
	metrics services.ParcelMetrics,
	hubCfg config.NotificationConfig,
) ParcelAdminFlow {
	if cache == nil {
		cache = services.NoopParcelCache{}
	}
	if metrics == nil {
		metrics = services.NoopParcelMetrics{}
	}
	return &ParcelAdminFlowImpl{
		tx:          tx,
		parcelRepo:  parcelRepo,
		eventRepo:   eventRepo,
		paymentRepo: paymentRepo,
		cache:       cache,
		codes:       codes,
		notifier:    notifier,
		calc:        calc,
		metrics:     metrics,
		hubCfg:      hubCfg,
	}
}

func (f *ParcelAdminFlowImpl) Receive(ctx context.Context, req *dto.ReceiveParcelRequest, metadata *ClientMetadata) (*dto.ReceiveParcelResponse, error) {
	tn := utils.NormalizeTrackingNumber(req.TrackingNumber)

	existing, err := f.parcelRepo.ByTrackingNumber(ctx, tn)
	if err != nil {
		return nil, NewBusinessError("RECEIVE_PARCEL_FAILED", "Failed to check tracking number", err)
	}
	if existing != nil {
		return nil, ErrTrackingNumberExists
	}

	code, hash, err := f.codes.Generate()
	if err != nil {
		return nil, NewBusinessError("PICKUP_CODE_FAILED", "Failed to generate pickup code", err)
	}

	parcel := &models.Parcel{
		TrackingNumber: tn,
		RecipientName:  strings.TrimSpace(req.RecipientName),
		RecipientEmail: strings.ToLower(strings.TrimSpace(req.RecipientEmail)),
		RecipientPhone: trimPtr(req.RecipientPhone),
		StudentID:      trimPtr(req.StudentID),
		CourierName:    strings.TrimSpace(req.CourierName),
		Categories:     normalizeCategories(req.Categories),
		BasePrice:      req.BasePrice,
		ShelfLocation:  trimPtr(req.ShelfLocation),
		Remarks:        trimPtr(req.Remarks),
		Status:         models.ParcelStatusReceived,
		PickupCodeHash: hash,
		CreatedAt:      f.calc.Now(),
	}
	parcel.UpdatedAt = parcel.CreatedAt

	err = f.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		if err := f.parcelRepo.Save(txCtx, parcel); err != nil {
			return err
		}
		return f.eventRepo.Save(txCtx, &models.ParcelEvent{
			ParcelID:  parcel.ID,
			Status:    models.ParcelStatusReceived,
			Note:      fmt.Sprintf("Received from %s", parcel.CourierName),
			Actor:     actorOf(metadata, "admin"),
			CreatedAt: parcel.CreatedAt,
		})
	})
	if err != nil {
		if repository.IsDuplicateKey(err) {
			return nil, ErrTrackingNumberExists
		}
		return nil, NewBusinessError("RECEIVE_PARCEL_FAILED", "Failed to save parcel", err)
	}

	// a miss may have been cached while the parcel did not exist yet
	if err := f.cache.Invalidate(ctx, parcel.TrackingNumber); err != nil {
		log.Printf("parcel cache invalidation failed for %s: %v", parcel.TrackingNumber, err)
	}
	f.metrics.ParcelReceived(parcel.CourierName)
	f.notifyArrival(parcel, code)

	return &dto.ReceiveParcelResponse{
		Message:    "Parcel received successfully",
		Parcel:     ToAdminParcelDTO(parcel, nil, priceParcel(f.calc, parcel, nil, parcel.CreatedAt)),
		PickupCode: code,
	}, nil
}

// notifyArrival tells the recipient a parcel is waiting. Best effort, off the request path.
func (f *ParcelAdminFlowImpl) notifyArrival(p *models.Parcel, code string) {
	if f.notifier == nil {
		return
	}
	quote := f.calc.QuoteAt(p.Categories, p.BasePrice, p.CreatedAt, p.CreatedAt)
	subject := fmt.Sprintf("Your parcel %s has arrived at %s", p.TrackingNumber, f.hubName())
	body := fmt.Sprintf(
		"Hi %s,\n\nParcel %s from %s is ready for collection at %s (%s).\nPickup code: %s\nCollection fee: %s %.2f. "+
			"Parcels held longer than %d days are charged %s %.0f for every further %d days.\n",
		p.RecipientName, p.TrackingNumber, p.CourierName, f.hubName(), f.hubCfg.HubOpeningHour, code,
		utils.Currency, quote.TotalPrice, pricing.GracePeriodDays, utils.Currency, pricing.MonthlyPenalty, pricing.OverduePeriodDays,
	)
	sms := fmt.Sprintf("%s: parcel %s is ready. Pickup code %s.", f.hubName(), p.TrackingNumber, code)

	email := p.RecipientEmail
	phone := p.RecipientPhone
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := f.notifier.SendEmail(ctx, email, subject, body); err != nil {
			log.Printf("arrival email to %s failed: %v", email, err)
		}
		if phone != nil && *phone != "" {
			if err := f.notifier.SendSMS(ctx, *phone, sms); err != nil {
				log.Printf("arrival SMS to %s failed: %v", *phone, err)
			}
		}
	}()
}

func (f *ParcelAdminFlowImpl) hubName() string {
	if f.hubCfg.HubName != "" {
		return f.hubCfg.HubName
	}
	return "the parcel hub"
}

func (f *ParcelAdminFlowImpl) List(ctx context.Context, req *dto.AdminListParcelsRequest, metadata *ClientMetadata) (resp *dto.AdminListParcelsResponse, err error) {
	defer func() {
		if err != nil && !IsInvalidPageSize(err) && !IsStartDateAfterEndDate(err) {
			err = NewBusinessError("ADMIN_LIST_PARCELS_FAILED", "Failed to list parcels", err)
		}
	}()

	page, pageSize, err := pagination(req.Page, req.PageSize)
	if err != nil {
		return nil, err
	}
	if req.ReceivedFrom != nil && req.ReceivedTo != nil && req.ReceivedFrom.After(*req.ReceivedTo) {
		return nil, ErrStartDateAfterEndDate
	}

	filter := models.ParcelFilter{
		Status:        nonEmpty(req.Status),
		CourierName:   nonEmpty(req.CourierName),
		Category:      nonEmpty(req.Category),
		CreatedAfter:  req.ReceivedFrom,
		CreatedBefore: req.ReceivedTo,
	}
	if prefix := nonEmpty(req.TrackingNumberPrefix); prefix != nil {
		filter.TrackingNumberPrefix = utils.ToPtr(utils.NormalizeTrackingNumber(*prefix))
	}
	if email := nonEmpty(req.RecipientEmail); email != nil {
		filter.RecipientEmail = utils.ToPtr(strings.ToLower(*email))
	}

	total, err := f.parcelRepo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	rows, err := f.parcelRepo.ByFilter(ctx, filter, "", int(pageSize), offsetOf(page, pageSize))
	if err != nil {
		return nil, err
	}

	payments, err := f.paymentsFor(ctx, rows)
	if err != nil {
		return nil, err
	}

	now := f.calc.Now()
	items := make([]dto.AdminParcelDTO, 0, len(rows))
	for _, p := range rows {
		pay := payments[p.ID]
		items = append(items, ToAdminParcelDTO(p, pay, priceParcel(f.calc, p, pay, now)))
	}

	return &dto.AdminListParcelsResponse{
		Message:    "Parcels retrieved successfully",
		Items:      items,
		Pagination: dto.NewPaginationInfo(total, page, pageSize),
	}, nil
}

func (f *ParcelAdminFlowImpl) paymentsFor(ctx context.Context, rows []*models.Parcel) (map[uint]*models.ParcelPayment, error) {
	ids := make([]uint, 0)
	for _, p := range rows {
		if p.IsCollected() {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return map[uint]*models.ParcelPayment{}, nil
	}
	return f.paymentRepo.ByParcelIDs(ctx, ids)
}

func (f *ParcelAdminFlowImpl) byUUID(ctx context.Context, id string) (*models.Parcel, error) {
	if _, err := utils.ParseUUID(id); err != nil {
		return nil, ErrInvalidParcelID
	}
	parcel, err := f.parcelRepo.ByUUID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("GET_PARCEL_FAILED", "Failed to load parcel", err)
	}
	if parcel == nil {
		return nil, ErrParcelNotFound
	}
	return parcel, nil
}

func (f *ParcelAdminFlowImpl) detail(ctx context.Context, parcel *models.Parcel, message string) (*dto.ParcelResponse, error) {
	var payment *models.ParcelPayment
	var err error
	if parcel.IsCollected() {
		payment, err = f.paymentRepo.ByParcelID(ctx, parcel.ID)
		if err != nil {
			return nil, NewBusinessError("GET_PARCEL_FAILED", "Failed to load parcel payment", err)
		}
	}
	events, err := f.eventRepo.ListByParcel(ctx, parcel.ID)
	if err != nil {
		return nil, NewBusinessError("GET_PARCEL_FAILED", "Failed to load parcel timeline", err)
	}

	out := ToAdminParcelDTO(parcel, payment, priceParcel(f.calc, parcel, payment, f.calc.Now()))
	out.Timeline = ToParcelEventDTOs(events)
	return &dto.ParcelResponse{Message: message, Parcel: out}, nil
}

func (f *ParcelAdminFlowImpl) Get(ctx context.Context, uuid string, metadata *ClientMetadata) (*dto.ParcelResponse, error) {
	parcel, err := f.byUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	return f.detail(ctx, parcel, "Parcel retrieved successfully")
}

func (f *ParcelAdminFlowImpl) Update(ctx context.Context, req *dto.UpdateParcelRequest, metadata *ClientMetadata) (*dto.ParcelResponse, error) {
	parcel, err := f.byUUID(ctx, req.UUID)
	if err != nil {
		return nil, err
	}
	if parcel.IsCollected() {
		return nil, ErrParcelCollectedImmutable
	}

	changed := false
	if req.RecipientName != nil {
		parcel.RecipientName = strings.TrimSpace(*req.RecipientName)
		changed = true
	}
	if req.RecipientEmail != nil {
		parcel.RecipientEmail = strings.ToLower(strings.TrimSpace(*req.RecipientEmail))
		changed = true
	}
	if req.RecipientPhone != nil {
		parcel.RecipientPhone = trimPtr(req.RecipientPhone)
		changed = true
	}
	if req.StudentID != nil {
		parcel.StudentID = trimPtr(req.StudentID)
		changed = true
	}
	if req.CourierName != nil {
		parcel.CourierName = strings.TrimSpace(*req.CourierName)
		changed = true
	}
	if req.Categories != nil {
		parcel.Categories = normalizeCategories(req.Categories)
		changed = true
	}
	if req.ClearBasePrice {
		parcel.BasePrice = nil
		changed = true
	} else if req.BasePrice != nil {
		parcel.BasePrice = req.BasePrice
		changed = true
	}
	if req.ShelfLocation != nil {
		parcel.ShelfLocation = trimPtr(req.ShelfLocation)
		changed = true
	}
	if req.Remarks != nil {
		parcel.Remarks = trimPtr(req.Remarks)
		changed = true
	}
	if !changed {
		return nil, ErrNothingToUpdate
	}

	parcel.UpdatedAt = utils.UTCNow()
	updated, err := f.parcelRepo.Update(ctx, parcel)
	if err != nil {
		return nil, NewBusinessError("UPDATE_PARCEL_FAILED", "Failed to update parcel", err)
	}
	if !updated {
		// collected between the read above and the write
		return nil, ErrParcelCollectedImmutable
	}
	f.invalidate(ctx, parcel.TrackingNumber)

	return f.detail(ctx, parcel, "Parcel updated successfully")
}

// allowedTransitions lists the status changes staff may make; Collected is reserved for payment
var allowedTransitions = map[string]map[string]bool{
	models.ParcelStatusReceived: {models.ParcelStatusReturned: true},
	models.ParcelStatusReturned: {models.ParcelStatusReceived: true},
}

func (f *ParcelAdminFlowImpl) UpdateStatus(ctx context.Context, req *dto.UpdateParcelStatusRequest, metadata *ClientMetadata) (*dto.ParcelResponse, error) {
	parcel, err := f.byUUID(ctx, req.UUID)
	if err != nil {
		return nil, err
	}
	if parcel.IsCollected() {
		return nil, ErrParcelCollectedImmutable
	}
	if !allowedTransitions[parcel.Status][req.Status] {
		return nil, NewBusinessErrorf("INVALID_STATUS_TRANSITION", "cannot move parcel from %s to %s", ErrInvalidStatusTransition, parcel.Status, req.Status)
	}

	from := parcel.Status
	err = f.tx.WithinTransaction(ctx, func(txCtx context.Context) error {
		ok, err := f.parcelRepo.UpdateStatus(txCtx, parcel.ID, from, req.Status)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidStatusTransition
		}
		note := strings.TrimSpace(req.Note)
		if note == "" {
			note = fmt.Sprintf("Status changed from %s to %s", from, req.Status)
		}
		return f.eventRepo.Save(txCtx, &models.ParcelEvent{
			ParcelID: parcel.ID,
			Status:   req.Status,
			Note:     note,
			Actor:    actorOf(metadata, "admin"),
		})
	})
	if err != nil {
		if IsInvalidStatusTransition(err) {
			return nil, NewBusinessError("INVALID_STATUS_TRANSITION", "parcel status changed concurrently", err)
		}
		return nil, NewBusinessError("UPDATE_PARCEL_STATUS_FAILED", "Failed to update parcel status", err)
	}
	f.invalidate(ctx, parcel.TrackingNumber)

	parcel.Status = req.Status
	parcel.UpdatedAt = utils.UTCNow()
	return f.detail(ctx, parcel, "Parcel status updated successfully")
}

func (f *ParcelAdminFlowImpl) Delete(ctx context.Context, uuid string, metadata *ClientMetadata) (*dto.DeleteParcelResponse, error) {
	parcel, err := f.byUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if parcel.IsCollected() {
		return nil, ErrParcelCollectedImmutable
	}

	ok, err := f.parcelRepo.DeleteUncollected(ctx, parcel.ID)
	if err != nil {
		return nil, NewBusinessError("DELETE_PARCEL_FAILED", "Failed to delete parcel", err)
	}
	if !ok {
		// collected between the read and the delete
		return nil, ErrParcelCollectedImmutable
	}
	f.invalidate(ctx, parcel.TrackingNumber)

	return &dto.DeleteParcelResponse{Message: "Parcel deleted successfully", UUID: parcel.UUID.String()}, nil
}

func (f *ParcelAdminFlowImpl) RegeneratePickupCode(ctx context.Context, uuid string, metadata *ClientMetadata) (*dto.RegeneratePickupCodeResponse, error) {
	parcel, err := f.byUUID(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if parcel.IsCollected() {
		return nil, ErrParcelAlreadyCollected
	}
	if parcel.Status == models.ParcelStatusReturned {
		return nil, ErrParcelReturned
	}

	code, hash, err := f.codes.Generate()
	if err != nil {
		return nil, NewBusinessError("PICKUP_CODE_FAILED", "Failed to generate pickup code", err)
	}
	if err := f.parcelRepo.UpdatePickupCodeHash(ctx, parcel.ID, hash); err != nil {
		return nil, NewBusinessError("PICKUP_CODE_FAILED", "Failed to store pickup code", err)
	}
	parcel.PickupCodeHash = hash
	f.notifyArrival(parcel, code)

	return &dto.RegeneratePickupCodeResponse{
		Message:        "Pickup code regenerated successfully",
		TrackingNumber: parcel.TrackingNumber,
		PickupCode:     code,
	}, nil
}

func (f *ParcelAdminFlowImpl) invalidate(ctx context.Context, trackingNumber string) {
	if err := f.cache.Invalidate(ctx, trackingNumber); err != nil {
		log.Printf("parcel cache invalidation failed for %s: %v", trackingNumber, err)
	}
}

// normalizeCategories trims labels, drops empties and duplicates, and keeps order
func normalizeCategories(in []string) pq.StringArray {
	out := make(pq.StringArray, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func nonEmpty(s *string) *string {
	return trimPtr(s)
}
