// Package export renders account listings as spreadsheet-friendly CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/dukerupert/tally/internal/model"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// bom lets spreadsheet applications detect UTF-8.
const bom = "\ufeff"

var header = []string{"Data", "Cliente", "Categoria", "Valor", "Descrição"}

type CSV struct {
	printer *message.Printer
	symbol  string
}

// NewCSV returns an exporter that formats money for locale, e.g. "pt-BR",
// prefixed with symbol.
func NewCSV(locale, symbol string) (*CSV, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("parse locale: %w", err)
	}
	return &CSV{printer: message.NewPrinter(tag), symbol: symbol}, nil
}

// FormatMoney renders v with two fraction digits in the exporter's locale.
func (c *CSV) FormatMoney(v decimal.Decimal) string {
	s := c.printer.Sprint(number.Decimal(v.Round(2).InexactFloat64(), number.Scale(2)))
	if c.symbol == "" {
		return s
	}
	return c.symbol + " " + s
}

// Write emits the BOM, the header and one row per account in the given order.
// Accounts must carry UserName and CategoryName.
func (c *CSV) Write(w io.Writer, accounts []model.Account) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("write bom: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, a := range accounts {
		row := []string{
			a.Date.String(),
			a.UserName,
			a.CategoryName,
			c.FormatMoney(a.Value),
			a.Description,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Filename is the attachment name for a report generated at t.
func Filename(t time.Time) string {
	return "relatorio_" + t.Format(model.DateLayout) + ".csv"
}
