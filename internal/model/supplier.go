package model

import "time"

// Supplier is a vendor that can be asked for direct quotes (Art. 5, IV).
type Supplier struct {
	ID          string `json:"id"`
	TaxID       string `json:"tax_id"` // CNPJ or CPF, digits only
	Name        string `json:"name"`
	ContactName string `json:"contact_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	Address     string `json:"address,omitempty"`
}

// Report records a generated price-research report.
type Report struct {
	ID                  string    `json:"id"`
	ResearchID          string    `json:"research_id"`
	ResearchDescription string    `json:"research_description"`
	GeneratedBy         string    `json:"generated_by"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// CatalogItem is a CATMAT material catalog entry.
type CatalogItem struct {
	Code        int64  `json:"code"`
	Description string `json:"description"`
}
