package dto

import "time"

// ReportRequest bounds a report by intake time; both ends optional and inclusive
type ReportRequest struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// CourierCountDTO is the number of parcels one courier delivered
type CourierCountDTO struct {
	CourierName string `json:"courier_name"`
	Count       int64  `json:"count"`
}

// ReportSummaryResponse aggregates hub activity
type ReportSummaryResponse struct {
	From               *string           `json:"from,omitempty"`
	To                 *string           `json:"to,omitempty"`
	GeneratedAt        string            `json:"generated_at"`
	TotalParcels       int64             `json:"total_parcels"`
	StatusCounts       map[string]int64  `json:"status_counts"`
	OverdueNow         int64             `json:"overdue_now"`
	OutstandingOverdue float64           `json:"outstanding_overdue"`
	Revenue            RevenueDTO        `json:"revenue"`
	Couriers           []CourierCountDTO `json:"couriers"`
}

// ReportFile is a generated download
type ReportFile struct {
	FileName    string
	ContentType string
	Data        []byte
}
