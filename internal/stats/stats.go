// Package stats derives summaries from account rows. Every function is pure:
// callers fetch the scoped rows and pass them in.
package stats

import (
	"sort"
	"time"

	"github.com/dukerupert/tally/internal/model"
	"github.com/shopspring/decimal"
)

// DefaultMonthsBack is the trailing window used for monthly totals.
const DefaultMonthsBack = 6

type Summary struct {
	Count   int             `json:"count"`
	Total   decimal.Decimal `json:"total"`
	Average decimal.Decimal `json:"average"`
	Max     decimal.Decimal `json:"max"`
}

// Summarize returns count, sum, average and max of the accounts' values.
// An empty input yields all zeros.
func Summarize(accounts []model.Account) Summary {
	s := Summary{Total: decimal.Zero, Average: decimal.Zero, Max: decimal.Zero}
	for i, a := range accounts {
		s.Total = s.Total.Add(a.Value)
		if i == 0 || a.Value.GreaterThan(s.Max) {
			s.Max = a.Value
		}
	}
	s.Count = len(accounts)
	if s.Count > 0 {
		s.Average = s.Total.Div(decimal.NewFromInt(int64(s.Count))).Round(2)
	}
	s.Total = s.Total.Round(2)
	s.Max = s.Max.Round(2)
	return s
}

type CategoryTotal struct {
	CategoryID int64           `json:"category_id"`
	Name       string          `json:"name"`
	Icon       string          `json:"icon"`
	Count      int             `json:"count"`
	Total      decimal.Decimal `json:"total"`
}

// ByCategory totals accounts per category, largest total first. Ties are
// broken by category name.
func ByCategory(accounts []model.Account) []CategoryTotal {
	idx := make(map[int64]int)
	var out []CategoryTotal
	for _, a := range accounts {
		i, ok := idx[a.CategoryID]
		if !ok {
			i = len(out)
			idx[a.CategoryID] = i
			out = append(out, CategoryTotal{
				CategoryID: a.CategoryID,
				Name:       a.CategoryName,
				Icon:       a.CategoryIcon,
				Total:      decimal.Zero,
			})
		}
		out[i].Count++
		out[i].Total = out[i].Total.Add(a.Value)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Name < out[j].Name
	})
	for i := range out {
		out[i].Total = out[i].Total.Round(2)
	}
	return out
}

type MonthTotal struct {
	Month string          `json:"month"`
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
}

// ByMonth totals accounts per calendar month over the window that starts
// monthsBack months before now's month and ends with now's month. Only
// months with at least one account appear, oldest first.
func ByMonth(accounts []model.Account, now time.Time, monthsBack int) []MonthTotal {
	start, end := Window(now, monthsBack)

	idx := make(map[string]int)
	var out []MonthTotal
	for _, a := range accounts {
		if a.Date.Before(start) || !a.Date.Before(end) {
			continue
		}
		key := a.Date.MonthKey()
		i, ok := idx[key]
		if !ok {
			i = len(out)
			idx[key] = i
			out = append(out, MonthTotal{Month: key, Total: decimal.Zero})
		}
		out[i].Count++
		out[i].Total = out[i].Total.Add(a.Value)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	for i := range out {
		out[i].Total = out[i].Total.Round(2)
	}
	return out
}

// Window returns the half-open [start, end) date range ByMonth covers.
func Window(now time.Time, monthsBack int) (time.Time, time.Time) {
	if monthsBack < 0 {
		monthsBack = 0
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, -monthsBack, 0), first.AddDate(0, 1, 0)
}

type UserTotal struct {
	Count int
	Total decimal.Decimal
}

// ByUser totals accounts per owner.
func ByUser(accounts []model.Account) map[int64]UserTotal {
	out := make(map[int64]UserTotal)
	for _, a := range accounts {
		t, ok := out[a.UserID]
		if !ok {
			t.Total = decimal.Zero
		}
		t.Count++
		t.Total = t.Total.Add(a.Value)
		out[a.UserID] = t
	}
	return out
}
