package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ResearchStatus represents the lifecycle of a price research.
type ResearchStatus string

const (
	ResearchStatusDraft         ResearchStatus = "draft"
	ResearchStatusInProgress    ResearchStatus = "in_progress"
	ResearchStatusPendingReview ResearchStatus = "pending_review"
	ResearchStatusCompleted     ResearchStatus = "completed"
	ResearchStatusArchived      ResearchStatus = "archived"
)

// ResearchStatuses returns every status in workflow order.
func ResearchStatuses() []ResearchStatus {
	return []ResearchStatus{
		ResearchStatusDraft,
		ResearchStatusInProgress,
		ResearchStatusPendingReview,
		ResearchStatusCompleted,
		ResearchStatusArchived,
	}
}

// IsValid reports whether s is a known status.
func (s ResearchStatus) IsValid() bool {
	for _, v := range ResearchStatuses() {
		if s == v {
			return true
		}
	}
	return false
}

// IsOpen reports whether the research is still being worked on.
func (s ResearchStatus) IsOpen() bool {
	return s == ResearchStatusInProgress || s == ResearchStatusPendingReview
}

// ContractType distinguishes goods from services.
type ContractType string

const (
	ContractGoods    ContractType = "goods"
	ContractServices ContractType = "services"
)

// IsValid reports whether c is a known contract type.
func (c ContractType) IsValid() bool {
	return c == ContractGoods || c == ContractServices
}

// Justifications are the analyst's written grounds required by IN 65/2021 Art. 6.
type Justifications struct {
	Method         string `json:"method,omitempty" yaml:"method,omitempty"`
	Disregarded    string `json:"disregarded,omitempty" yaml:"disregarded,omitempty"`
	Adjustment     string `json:"adjustment,omitempty" yaml:"adjustment,omitempty"`
	FewerThanThree string `json:"fewer_than_three,omitempty" yaml:"fewer_than_three,omitempty"`
}

// Research is a single item or service being priced.
type Research struct {
	ID                string           `json:"id"`
	Description       string           `json:"description"`
	ResponsibleAgent  string           `json:"responsible_agent"`
	Status            ResearchStatus   `json:"status"`
	ContractType      ContractType     `json:"contract_type"`
	CatalogCode       int64            `json:"catalog_code,omitempty"`
	Justifications    Justifications   `json:"justifications"`
	Method            EstimationMethod `json:"method"`
	AdjustmentPercent decimal.Decimal  `json:"adjustment_percent"`
	EstimatedPrice    *decimal.Decimal `json:"estimated_price,omitempty"`
	Observations      []Observation    `json:"observations,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// ResearchUpdate holds the mutable research fields; nil means unchanged.
type ResearchUpdate struct {
	Description       *string           `json:"description,omitempty"`
	ResponsibleAgent  *string           `json:"responsible_agent,omitempty"`
	Status            *ResearchStatus   `json:"status,omitempty"`
	ContractType      *ContractType     `json:"contract_type,omitempty"`
	CatalogCode       *int64            `json:"catalog_code,omitempty"`
	Justifications    *Justifications   `json:"justifications,omitempty"`
	Method            *EstimationMethod `json:"method,omitempty"`
	AdjustmentPercent *decimal.Decimal  `json:"adjustment_percent,omitempty"`
	EstimatedPrice    *decimal.Decimal  `json:"estimated_price,omitempty"`
}

// DashboardStats aggregates research counts for the landing page.
type DashboardStats struct {
	Total    int                    `json:"total"`
	ByStatus map[ResearchStatus]int `json:"by_status"`
}
