// Package businessflow contains the use cases of the parcel hub: tracking, intake, collection, reporting and contact.
package businessflow

import (
	"time"

	"github.com/jashub/parcelhub/app/dto"
	"github.com/jashub/parcelhub/models"
	"github.com/jashub/parcelhub/pricing"
	"github.com/jashub/parcelhub/utils"
)

// ClientMetadata holds client information recorded with write operations
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
	Actor     string `json:"actor,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetActor records who performs the operation, e.g. the admin key label
func (cm *ClientMetadata) SetActor(actor string) {
	cm.Actor = actor
}

func actorOf(metadata *ClientMetadata, fallback string) string {
	if metadata != nil && metadata.Actor != "" {
		return metadata.Actor
	}
	return fallback
}

// pagination resolves page defaults: page 0 means 1, size 0 means the default size
func pagination(page, pageSize uint) (uint, uint, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = utils.DefaultPageSize
	}
	if pageSize > utils.MaxPageSize {
		return 0, 0, ErrInvalidPageSize
	}
	return page, pageSize, nil
}

func offsetOf(page, pageSize uint) int {
	return int((page - 1) * pageSize)
}

// priceParcel prices a parcel at evaluatedAt. Collected parcels report the paid snapshot;
// without a payment row they are priced at the collection instant.
func priceParcel(calc pricing.Calculator, p *models.Parcel, payment *models.ParcelPayment, evaluatedAt time.Time) dto.PricingDTO {
	if p.IsCollected() {
		if payment != nil {
			return ToPricingDTO(pricing.Result{
				BasePrice:     payment.BasePrice,
				OverdueCharge: payment.OverdueCharge,
				TotalPrice:    payment.TotalPrice,
				DaysHeld:      payment.DaysHeld,
			}, payment.PaidAt, true)
		}
		if p.CollectedAt != nil {
			res := calc.QuoteAt(p.Categories, p.BasePrice, p.CreatedAt, *p.CollectedAt)
			return ToPricingDTO(res, *p.CollectedAt, true)
		}
	}
	return ToPricingDTO(calc.QuoteAt(p.Categories, p.BasePrice, p.CreatedAt, evaluatedAt), evaluatedAt, false)
}

// ToPricingDTO converts a calculator result
func ToPricingDTO(res pricing.Result, evaluatedAt time.Time, final bool) dto.PricingDTO {
	return dto.PricingDTO{
		BasePrice:     res.BasePrice,
		OverdueCharge: res.OverdueCharge,
		TotalPrice:    res.TotalPrice,
		DaysHeld:      res.DaysHeld,
		OverdueMonths: res.OverdueMonths(),
		Currency:      utils.Currency,
		EvaluatedAt:   evaluatedAt.UTC().Format(time.RFC3339),
		IsFinal:       final,
	}
}

func ToParcelEventDTOs(events []*models.ParcelEvent) []dto.ParcelEventDTO {
	out := make([]dto.ParcelEventDTO, 0, len(events))
	for _, e := range events {
		out = append(out, dto.ParcelEventDTO{
			Status:    e.Status,
			Note:      e.Note,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return out
}

// ToTrackParcelResponse builds the public view of a parcel
func ToTrackParcelResponse(p *models.Parcel, events []*models.ParcelEvent, price dto.PricingDTO) dto.TrackParcelResponse {
	resp := dto.TrackParcelResponse{
		TrackingNumber: p.TrackingNumber,
		RecipientName:  utils.MaskName(p.RecipientName),
		CourierName:    p.CourierName,
		Categories:     categoriesOf(p),
		Status:         p.Status,
		ShelfLocation:  p.ShelfLocation,
		ReceivedAt:     p.CreatedAt.UTC().Format(time.RFC3339),
		CollectedAt:    utils.FormatRFC3339Ptr(p.CollectedAt),
		Pricing:        price,
	}
	if events != nil {
		resp.Timeline = ToParcelEventDTOs(events)
	}
	return resp
}

// ToAdminParcelDTO builds the full admin view of a parcel
func ToAdminParcelDTO(p *models.Parcel, payment *models.ParcelPayment, price dto.PricingDTO) dto.AdminParcelDTO {
	out := dto.AdminParcelDTO{
		ID:             p.ID,
		UUID:           p.UUID.String(),
		TrackingNumber: p.TrackingNumber,
		RecipientName:  p.RecipientName,
		RecipientEmail: p.RecipientEmail,
		RecipientPhone: p.RecipientPhone,
		StudentID:      p.StudentID,
		CourierName:    p.CourierName,
		Categories:     categoriesOf(p),
		BasePrice:      p.BasePrice,
		ShelfLocation:  p.ShelfLocation,
		Remarks:        p.Remarks,
		Status:         p.Status,
		CollectedBy:    p.CollectedBy,
		CollectedAt:    utils.FormatRFC3339Ptr(p.CollectedAt),
		ReminderMonths: p.ReminderMonths,
		CreatedAt:      p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.UTC().Format(time.RFC3339),
		Pricing:        price,
	}
	if payment != nil {
		pd := ToPaymentDTO(payment)
		out.Payment = &pd
	}
	return out
}

func ToPaymentDTO(p *models.ParcelPayment) dto.PaymentDTO {
	return dto.PaymentDTO{
		UUID:           p.UUID.String(),
		ReceiptID:      p.ReceiptID,
		TrackingNumber: p.TrackingNumber,
		Method:         p.Method,
		PayerName:      p.PayerName,
		PayerStudentID: p.PayerStudentID,
		BasePrice:      p.BasePrice,
		OverdueCharge:  p.OverdueCharge,
		TotalPrice:     p.TotalPrice,
		DaysHeld:       p.DaysHeld,
		PaidAt:         p.PaidAt.UTC().Format(time.RFC3339),
	}
}

func ToRevenueDTO(t *models.RevenueTotals) dto.RevenueDTO {
	out := dto.RevenueDTO{Currency: utils.Currency}
	if t != nil {
		out.Count = t.Count
		out.BaseTotal = t.BaseTotal
		out.OverdueTotal = t.OverdueTotal
		out.RevenueTotal = t.RevenueTotal
	}
	return out
}

func ToContactMessageDTO(m *models.ContactMessage) dto.ContactMessageDTO {
	return dto.ContactMessageDTO{
		UUID:      m.UUID.String(),
		Name:      m.Name,
		Email:     m.Email,
		Subject:   m.Subject,
		Message:   m.Message,
		IPAddress: m.IPAddress,
		ReadAt:    utils.FormatRFC3339Ptr(m.ReadAt),
		CreatedAt: m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func categoriesOf(p *models.Parcel) []string {
	if p.Categories == nil {
		return []string{}
	}
	return []string(p.Categories)
}
