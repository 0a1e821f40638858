package model

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

// Date is a calendar day without a time component.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// MonthKey returns the YYYY-MM bucket the date falls in.
func (d Date) MonthKey() string {
	return d.Format("2006-01")
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if len(b) < 2 || b[0] != '"' || b[len(b)-1] != '"' {
		return fmt.Errorf("invalid date %s", b)
	}
	parsed, err := ParseDate(string(b[1 : len(b)-1]))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	return d.String(), nil
}

func (d *Date) Scan(src any) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
	case []byte:
		return d.Scan(string(v))
	case time.Time:
		*d = NewDate(v.Year(), v.Month(), v.Day())
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
	return nil
}

// Account is a single recorded expense.
type Account struct {
	ID           int64           `json:"id"`
	UserID       int64           `json:"user_id"`
	GroupID      *int64          `json:"group_id"`
	CategoryID   int64           `json:"category_id"`
	Value        decimal.Decimal `json:"value"`
	Date         Date            `json:"date"`
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"created_at"`
	CategoryName string          `json:"category_name"`
	CategoryIcon string          `json:"category_icon"`
	UserName     string          `json:"user_name"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Icon string `json:"icon"`
}

// AccountFilter narrows an account listing. Zero values mean "no filter".
type AccountFilter struct {
	GroupID    int64
	CategoryID int64
	DateFrom   *Date
	DateTo     *Date
	Month      string
	Limit      int
}
