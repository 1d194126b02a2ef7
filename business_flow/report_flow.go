package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jashub/parcelhub/app/dto"
	"github.com/jashub/parcelhub/models"
	"github.com/jashub/parcelhub/pricing"
	"github.com/jashub/parcelhub/repository"
	"github.com/jashub/parcelhub/utils"
	"github.com/xuri/excelize/v2"
)

const (
	reportBatchSize   = 500
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	parcelsSheetName  = "Parcels"
	summarySheetName  = "Summary"
	reportFilePattern = "parcels_%s.xlsx"
)

// ReportFlow aggregates hub activity for administrators
type ReportFlow interface {
	Summary(ctx context.Context, req *dto.ReportRequest, metadata *ClientMetadata) (*dto.ReportSummaryResponse, error)
	ExcelReport(ctx context.Context, req *dto.ReportRequest, metadata *ClientMetadata) (*dto.ReportFile, error)
}

// ReportFlowImpl implements ReportFlow
type ReportFlowImpl struct {
	parcelRepo  repository.ParcelRepository
	paymentRepo repository.ParcelPaymentRepository
	calc        pricing.Calculator
}

func NewReportFlow(parcelRepo repository.ParcelRepository, paymentRepo repository.ParcelPaymentRepository, calc pricing.Calculator) ReportFlow {
	return &ReportFlowImpl{
		parcelRepo:  parcelRepo,
		paymentRepo: paymentRepo,
		calc:        calc,
	}
}

func (f *ReportFlowImpl) Summary(ctx context.Context, req *dto.ReportRequest, metadata *ClientMetadata) (resp *dto.ReportSummaryResponse, err error) {
	defer func() {
		if err != nil && !IsStartDateAfterEndDate(err) {
			err = NewBusinessError("REPORT_SUMMARY_FAILED", "Failed to build report summary", err)
		}
	}()

	if err := validateRange(req); err != nil {
		return nil, err
	}
	return f.summary(ctx, req, f.calc.Now())
}

func (f *ReportFlowImpl) summary(ctx context.Context, req *dto.ReportRequest, now time.Time) (*dto.ReportSummaryResponse, error) {
	statusRows, err := f.parcelRepo.StatusCounts(ctx, req.From, req.To)
	if err != nil {
		return nil, err
	}
	counts := map[string]int64{}
	for _, s := range models.ParcelStatuses {
		counts[s] = 0
	}
	var total int64
	for _, row := range statusRows {
		counts[row.Status] = row.Count
		total += row.Count
	}

	courierRows, err := f.parcelRepo.CourierCounts(ctx, req.From, req.To)
	if err != nil {
		return nil, err
	}
	couriers := make([]dto.CourierCountDTO, 0, len(courierRows))
	for _, row := range courierRows {
		couriers = append(couriers, dto.CourierCountDTO{CourierName: row.CourierName, Count: row.Count})
	}

	revenue, err := f.paymentRepo.Totals(ctx, models.ParcelPaymentFilter{PaidAfter: req.From, PaidBefore: req.To})
	if err != nil {
		return nil, err
	}

	// a parcel is overdue once it has been held longer than the grace period
	cutoff := now.Add(-time.Duration(pricing.GracePeriodDays) * 24 * time.Hour)
	if req.To != nil && req.To.Before(cutoff) {
		cutoff = *req.To
	}
	status := models.ParcelStatusReceived
	filter := models.ParcelFilter{Status: &status, CreatedAfter: req.From, CreatedBefore: &cutoff}

	var overdueNow int64
	var outstanding float64
	err = f.eachParcel(ctx, filter, func(p *models.Parcel, _ *models.ParcelPayment) error {
		res := f.calc.QuoteAt(p.Categories, p.BasePrice, p.CreatedAt, now)
		if res.DaysHeld > pricing.GracePeriodDays {
			overdueNow++
			outstanding += res.OverdueCharge
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &dto.ReportSummaryResponse{
		From:               utils.FormatRFC3339Ptr(req.From),
		To:                 utils.FormatRFC3339Ptr(req.To),
		GeneratedAt:        now.UTC().Format(time.RFC3339),
		TotalParcels:       total,
		StatusCounts:       counts,
		OverdueNow:         overdueNow,
		OutstandingOverdue: outstanding,
		Revenue:            ToRevenueDTO(revenue),
		Couriers:           couriers,
	}, nil
}

// eachParcel walks the filter in batches, oldest first, with payments loaded for collected parcels
func (f *ReportFlowImpl) eachParcel(ctx context.Context, filter models.ParcelFilter, fn func(*models.Parcel, *models.ParcelPayment) error) error {
	for offset := 0; ; offset += reportBatchSize {
		rows, err := f.parcelRepo.ByFilter(ctx, filter, "created_at ASC, id ASC", reportBatchSize, offset)
		if err != nil {
			return err
		}

		ids := make([]uint, 0, len(rows))
		for _, p := range rows {
			if p.IsCollected() {
				ids = append(ids, p.ID)
			}
		}
		payments := map[uint]*models.ParcelPayment{}
		if len(ids) > 0 {
			if payments, err = f.paymentRepo.ByParcelIDs(ctx, ids); err != nil {
				return err
			}
		}

		for _, p := range rows {
			if err := fn(p, payments[p.ID]); err != nil {
				return err
			}
		}
		if len(rows) < reportBatchSize {
			return nil
		}
	}
}

func (f *ReportFlowImpl) ExcelReport(ctx context.Context, req *dto.ReportRequest, metadata *ClientMetadata) (*dto.ReportFile, error) {
	if err := validateRange(req); err != nil {
		return nil, err
	}

	now := f.calc.Now()
	summary, err := f.summary(ctx, req, now)
	if err != nil {
		return nil, NewBusinessError("REPORT_SUMMARY_FAILED", "Failed to build report summary", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	xl.SetSheetName(xl.GetSheetName(0), parcelsSheetName)
	header := []string{
		"tracking_number", "recipient_name", "recipient_email", "student_id", "courier_name", "categories",
		"status", "received_at", "collected_at", "days_held", "base_price", "overdue_charge", "total_price", "final",
		"payment_method", "receipt_id",
	}
	if err := xl.SetSheetRow(parcelsSheetName, "A1", &header); err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	row := 2
	err = f.eachParcel(ctx, models.ParcelFilter{CreatedAfter: req.From, CreatedBefore: req.To}, func(p *models.Parcel, pay *models.ParcelPayment) error {
		price := priceParcel(f.calc, p, pay, now)
		method, receiptID := "", ""
		if pay != nil {
			method, receiptID = pay.Method, pay.ReceiptID
		}
		collectedAt := ""
		if p.CollectedAt != nil {
			collectedAt = p.CollectedAt.UTC().Format(time.RFC3339)
		}
		studentID := ""
		if p.StudentID != nil {
			studentID = *p.StudentID
		}
		record := []any{
			p.TrackingNumber,
			p.RecipientName,
			p.RecipientEmail,
			studentID,
			p.CourierName,
			strings.Join(p.Categories, ", "),
			p.Status,
			p.CreatedAt.UTC().Format(time.RFC3339),
			collectedAt,
			price.DaysHeld,
			price.BasePrice,
			price.OverdueCharge,
			price.TotalPrice,
			strconv.FormatBool(price.IsFinal),
			method,
			receiptID,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return err
		}
		row++
		return xl.SetSheetRow(parcelsSheetName, cell, &record)
	})
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	if err := writeSummarySheet(xl, summary); err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	return &dto.ReportFile{
		FileName:    fmt.Sprintf(reportFilePattern, now.Format("20060102")),
		ContentType: xlsxContentType,
		Data:        buf.Bytes(),
	}, nil
}

func writeSummarySheet(xl *excelize.File, s *dto.ReportSummaryResponse) error {
	if _, err := xl.NewSheet(summarySheetName); err != nil {
		return err
	}

	from, to := "", ""
	if s.From != nil {
		from = *s.From
	}
	if s.To != nil {
		to = *s.To
	}
	rows := [][]any{
		{"generated_at", s.GeneratedAt},
		{"from", from},
		{"to", to},
		{"total_parcels", s.TotalParcels},
	}
	for _, status := range models.ParcelStatuses {
		rows = append(rows, []any{"status_" + status, s.StatusCounts[status]})
	}
	rows = append(rows,
		[]any{"overdue_now", s.OverdueNow},
		[]any{"outstanding_overdue", s.OutstandingOverdue},
		[]any{"collected_count", s.Revenue.Count},
		[]any{"revenue_base", s.Revenue.BaseTotal},
		[]any{"revenue_overdue", s.Revenue.OverdueTotal},
		[]any{"revenue_total", s.Revenue.RevenueTotal},
		[]any{"currency", s.Revenue.Currency},
		[]any{},
		[]any{"courier", "parcels"},
	)
	for _, c := range s.Couriers {
		rows = append(rows, []any{c.CourierName, c.Count})
	}

	for i, r := range rows {
		if len(r) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := xl.SetSheetRow(summarySheetName, cell, &r); err != nil {
			return err
		}
	}
	return nil
}

func validateRange(req *dto.ReportRequest) error {
	if req.From != nil && req.To != nil && req.From.After(*req.To) {
		return ErrStartDateAfterEndDate
	}
	return nil
}
