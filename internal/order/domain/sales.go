package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrInvalidPeriod = errors.New("invalid reporting period")

// Period is a trailing reporting window such as "7d".
type Period string

const DefaultPeriod Period = "7d"

var periods = map[Period]time.Duration{
	"1d":  24 * time.Hour,
	"7d":  7 * 24 * time.Hour,
	"30d": 30 * 24 * time.Hour,
	"90d": 90 * 24 * time.Hour,
	"1y":  365 * 24 * time.Hour,
}

// Since returns the start of the window ending at now.
func (p Period) Since(now time.Time) (time.Time, error) {
	d, ok := periods[p]
	if !ok {
		return time.Time{}, ErrInvalidPeriod
	}
	return now.Add(-d), nil
}

// ItemSales aggregates the paid order lines of one menu item.
type ItemSales struct {
	ItemID       string          `json:"itemId"`
	Name         string          `json:"name"`
	QuantitySold int64           `json:"quantitySold"`
	TotalRevenue decimal.Decimal `json:"totalRevenue"`
}

// HourlyRevenue is the paid revenue of orders placed in one hour of the day, UTC.
type HourlyRevenue struct {
	Hour    int             `json:"hour"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int64           `json:"orders"`
}
