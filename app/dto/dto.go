// Package dto contains the request and response shapes of the HTTP API
package dto

// APIResponse represents the standard API response structure
type APIResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty" validate:"omitempty"`
	Error   any    `json:"error,omitempty" validate:"omitempty"`
}

// ErrorDetail represents error details in API responses
type ErrorDetail struct {
	Code    string `json:"code"`
	Details any    `json:"details,omitempty" validate:"omitempty"`
}

// PaginationInfo contains pagination metadata
type PaginationInfo struct {
	Total      int64 `json:"total"`
	Page       uint  `json:"page"`
	PageSize   uint  `json:"page_size"`
	TotalPages int64 `json:"total_pages"`
}

// NewPaginationInfo derives the page count from total and pageSize
func NewPaginationInfo(total int64, page, pageSize uint) PaginationInfo {
	pages := int64(0)
	if pageSize > 0 {
		pages = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return PaginationInfo{Total: total, Page: page, PageSize: pageSize, TotalPages: pages}
}
