package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/scanserve/api/internal/database"
	"github.com/scanserve/api/internal/tz"
	"github.com/shopspring/decimal"
)

// ErrInvalidRange is returned for an unrecognized range parameter.
var ErrInvalidRange = errors.New("invalid range")

// RevenueStore defines the DB methods the revenue service needs.
// Satisfied by *database.Queries.
type RevenueStore interface {
	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	FindBillsInWindow(ctx context.Context, arg database.FindBillsInWindowParams) ([]database.Bill, error)
}

// RevenueService aggregates settled bills into revenue reports. All
// day bucketing happens in the restaurant's local day, derived from
// its stored UTC offset; bills are fetched by UTC instant.
type RevenueService struct {
	store RevenueStore
	now   func() time.Time
}

// NewRevenueService creates a new RevenueService.
func NewRevenueService(store RevenueStore) *RevenueService {
	return &RevenueService{store: store, now: time.Now}
}

// DailyRevenue is one local calendar day in a breakdown.
type DailyRevenue struct {
	Date    string `json:"date"`
	Revenue string `json:"revenue"`
	Bills   int    `json:"bills"`
}

// RevenueSummary is the aggregate report for a range.
type RevenueSummary struct {
	Range            string         `json:"range"`
	TotalBills       int            `json:"totalBills"`
	TotalRevenue     string         `json:"totalRevenue"`
	AverageBillValue string         `json:"averageBillValue"`
	AverageBill      string         `json:"averageBill"` // legacy alias
	DailyBreakdown   []DailyRevenue `json:"dailyBreakdown"`
}

// TopItem is one entry in the best-sellers report.
type TopItem struct {
	ItemID   uuid.UUID `json:"itemId"`
	Name     string    `json:"name"`
	Quantity int64     `json:"quantity"`
	Revenue  string    `json:"revenue"`
}

// Summary aggregates the restaurant's settled bills over the range,
// with the contiguous daily series attached as dailyBreakdown.
func (s *RevenueService) Summary(ctx context.Context, restaurantID uuid.UUID, rangeStr string) (*RevenueSummary, error) {
	rest, bills, days, err := s.fetch(ctx, restaurantID, rangeStr)
	if err != nil {
		return nil, err
	}

	breakdown := s.dailySeries(rest, bills, days)

	total := decimal.Zero
	for _, b := range bills {
		total = total.Add(numericToDecimal(b.GrandTotal))
	}

	avg := decimal.Zero
	if len(bills) > 0 {
		avg = total.Div(decimal.NewFromInt(int64(len(bills)))).Round(2)
	}

	return &RevenueSummary{
		Range:            rangeStr,
		TotalBills:       len(bills),
		TotalRevenue:     total.StringFixed(2),
		AverageBillValue: avg.StringFixed(2),
		AverageBill:      avg.StringFixed(2),
		DailyBreakdown:   breakdown,
	}, nil
}

// Trend returns just the daily series for the range, for charting.
func (s *RevenueService) Trend(ctx context.Context, restaurantID uuid.UUID, rangeStr string) ([]DailyRevenue, error) {
	rest, bills, days, err := s.fetch(ctx, restaurantID, rangeStr)
	if err != nil {
		return nil, err
	}
	return s.dailySeries(rest, bills, days), nil
}

// dailySeries buckets bills into contiguous local calendar days. Days
// with no bills appear with zero revenue, so charts never skip a day.
func (s *RevenueService) dailySeries(rest database.Restaurant, bills []database.Bill, days int) []DailyRevenue {
	startUTC, _ := tz.DayWindow(s.now(), int(rest.TzOffsetMinutes), days)

	revByDay := make(map[string]decimal.Decimal, days)
	billsByDay := make(map[string]int, days)
	var dates []string
	for i := 0; i < days; i++ {
		date := tz.LocalDateString(startUTC.AddDate(0, 0, i), int(rest.TzOffsetMinutes))
		dates = append(dates, date)
		revByDay[date] = decimal.Zero
	}

	for _, b := range bills {
		date := tz.LocalDateString(b.ClosedAt, int(rest.TzOffsetMinutes))
		revByDay[date] = revByDay[date].Add(numericToDecimal(b.GrandTotal))
		billsByDay[date]++
	}

	series := make([]DailyRevenue, 0, len(dates))
	for _, date := range dates {
		series = append(series, DailyRevenue{
			Date:    date,
			Revenue: revByDay[date].StringFixed(2),
			Bills:   billsByDay[date],
		})
	}
	return series
}

// TopItems ranks menu items by settled revenue over the range, using
// the consolidated bill lines. Ties keep first-appearance order.
func (s *RevenueService) TopItems(ctx context.Context, restaurantID uuid.UUID, rangeStr string, limit int) ([]TopItem, error) {
	_, bills, _, err := s.fetch(ctx, restaurantID, rangeStr)
	if err != nil {
		return nil, err
	}

	if limit < 1 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	type agg struct {
		name     string
		quantity int64
		revenue  decimal.Decimal
	}
	index := make(map[uuid.UUID]int)
	var items []agg
	for _, b := range bills {
		for _, l := range b.Items {
			if i, ok := index[l.ItemID]; ok {
				items[i].quantity += int64(l.Quantity)
				items[i].revenue = items[i].revenue.Add(l.LineTotal)
			} else {
				index[l.ItemID] = len(items)
				items = append(items, agg{
					name:     l.Name,
					quantity: int64(l.Quantity),
					revenue:  l.LineTotal,
				})
			}
		}
	}

	ids := make([]uuid.UUID, len(items))
	for id, i := range index {
		ids[i] = id
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return items[order[a]].revenue.GreaterThan(items[order[b]].revenue)
	})

	if len(order) > limit {
		order = order[:limit]
	}
	out := make([]TopItem, 0, len(order))
	for _, i := range order {
		out = append(out, TopItem{
			ItemID:   ids[i],
			Name:     items[i].name,
			Quantity: items[i].quantity,
			Revenue:  items[i].revenue.StringFixed(2),
		})
	}
	return out, nil
}

// fetch resolves the range against the restaurant's local clock and
// loads the bills in the resulting UTC window.
func (s *RevenueService) fetch(ctx context.Context, restaurantID uuid.UUID, rangeStr string) (database.Restaurant, []database.Bill, int, error) {
	rest, err := s.store.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return database.Restaurant{}, nil, 0, fmt.Errorf("get restaurant: %w", err)
	}

	days, err := s.rangeDays(rangeStr, int(rest.TzOffsetMinutes))
	if err != nil {
		return database.Restaurant{}, nil, 0, err
	}

	startUTC, endUTC := tz.DayWindow(s.now(), int(rest.TzOffsetMinutes), days)
	bills, err := s.store.FindBillsInWindow(ctx, database.FindBillsInWindowParams{
		RestaurantID: restaurantID,
		StartUTC:     startUTC,
		EndUTC:       endUTC,
	})
	if err != nil {
		return database.Restaurant{}, nil, 0, fmt.Errorf("find bills in window: %w", err)
	}
	return rest, bills, days, nil
}

// rangeDays maps a range name to a local-day count ending today.
func (s *RevenueService) rangeDays(rangeStr string, offsetMinutes int) (int, error) {
	switch rangeStr {
	case "today":
		return 1, nil
	case "7d", "7days":
		return 7, nil
	case "30d", "30days":
		return 30, nil
	case "month":
		// Month-to-date: local day of month counts today.
		local := s.now().UTC().Add(time.Duration(offsetMinutes) * time.Minute)
		return local.Day(), nil
	}
	return 0, ErrInvalidRange
}
