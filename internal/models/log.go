package models

import (
	"math"
	"time"
)

// LogEntry is a single gate access event
type LogEntry struct {
	ID        string    `json:"id" db:"id"`
	Image     *string   `json:"image" db:"image"`
	IsOpen    bool      `json:"isOpen" db:"is_open"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// LogFilter selects a page of log entries, newest first
type LogFilter struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Offset returns the number of rows skipped before the page starts
func (f LogFilter) Offset() int {
	if f.Page < 1 || f.Limit < 1 {
		return 0
	}
	if f.Page-1 > math.MaxInt/f.Limit {
		return math.MaxInt
	}
	return (f.Page - 1) * f.Limit
}

// Pagination describes where a page sits in the full log
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

// NewPagination computes the pagination block for a page of total rows
func NewPagination(filter LogFilter, total int64) Pagination {
	var pages int64
	if filter.Limit > 0 {
		pages = (total + int64(filter.Limit) - 1) / int64(filter.Limit)
	}
	return Pagination{
		Page:       filter.Page,
		Limit:      filter.Limit,
		Total:      total,
		TotalPages: pages,
	}
}

// LogPage is the body returned by the log listing endpoint
type LogPage struct {
	Data       []*LogEntry `json:"data"`
	Pagination Pagination  `json:"pagination"`
}
