package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// SourceType is one of the five price-collection parameters of IN 65/2021 Art. 5.
type SourceType string

const (
	SourceOfficialPanel    SourceType = "official_panel"    // I - Painel de Preços or similar systems
	SourcePublicContract   SourceType = "public_contract"   // II - similar contracts of other agencies
	SourceSpecializedMedia SourceType = "specialized_media" // III - specialized media or e-commerce
	SourceSupplierQuote    SourceType = "supplier_quote"    // IV - direct research with suppliers
	SourceInvoiceDatabase  SourceType = "invoice_database"  // V - electronic invoice database
)

// SourceTypes returns every valid source type in Art. 5 order.
func SourceTypes() []SourceType {
	return []SourceType{
		SourceOfficialPanel,
		SourcePublicContract,
		SourceSpecializedMedia,
		SourceSupplierQuote,
		SourceInvoiceDatabase,
	}
}

// IsValid reports whether s is one of the enumerated categories.
func (s SourceType) IsValid() bool {
	switch s {
	case SourceOfficialPanel, SourcePublicContract, SourceSpecializedMedia,
		SourceSupplierQuote, SourceInvoiceDatabase:
		return true
	}
	return false
}

// Label returns the regulatory label used in reports.
func (s SourceType) Label() string {
	switch s {
	case SourceOfficialPanel:
		return "I - Painel de Preços ou sistemas similares"
	case SourcePublicContract:
		return "II - Contratações similares de outros órgãos"
	case SourceSpecializedMedia:
		return "III - Mídia especializada ou sites de e-commerce"
	case SourceSupplierQuote:
		return "IV - Pesquisa direta com fornecedores"
	case SourceInvoiceDatabase:
		return "V - Pesquisa na base de notas fiscais eletrônicas"
	default:
		return string(s)
	}
}

// Observation is a single collected price record from one source.
type Observation struct {
	ID            string          `json:"id" yaml:"id"`
	ResearchID    string          `json:"research_id,omitempty" yaml:"-"`
	SourceType    SourceType      `json:"source_type" yaml:"source_type"`
	SourceLabel   string          `json:"source_label" yaml:"source_label"`
	CollectedDate Date            `json:"collected_date" yaml:"collected_date"`
	Price         decimal.Decimal `json:"price" yaml:"price"`
	Notes         string          `json:"notes,omitempty" yaml:"notes,omitempty"`
	SupplierID    string          `json:"supplier_id,omitempty" yaml:"supplier_id,omitempty"`
}

const dateLayout = "2006-01-02"

// Date is a calendar date without a time-of-day component.
type Date struct {
	t time.Time
}

// NewDate builds a Date in UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD date. RFC 3339 timestamps are accepted and
// truncated to their date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return DateOf(t), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, eris.Errorf("model: invalid date %q", s)
	}
	return DateOf(t), nil
}

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time { return d.t }

// IsZero reports whether the date is unset.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Before reports whether d falls on an earlier day than other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// After reports whether d falls on a later day than other.
func (d Date) After(other Date) bool { return d.t.After(other.t) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(dateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
