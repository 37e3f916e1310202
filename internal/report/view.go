// Package report renders the price-research technical note from a stored
// evaluation, as plain text or printable HTML.
package report

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/price-research/internal/model"
)

// ErrNotEvaluated is returned when the research has no stored evaluation.
var ErrNotEvaluated = eris.New("report: research has no stored evaluation")

// Document is everything a report needs.
type Document struct {
	Report     model.Report
	Research   model.Research
	Evaluation *model.StoredEvaluation
}

var reasonLabels = map[string]string{
	model.ReasonStale:      "desatualizado",
	model.ReasonTooLow:     "inexequível",
	model.ReasonOverpriced: "sobrepreço",
	model.ReasonDeselected: "desconsiderado pelo agente",
}

var methodLabels = map[model.EstimationMethod]string{
	model.MethodAverage: "média",
	model.MethodMedian:  "mediana",
	model.MethodLowest:  "menor preço",
}

type row struct {
	Source string
	Label  string
	Date   string
	Price  string
	Status string
	Notes  string
	Valid  bool
}

type view struct {
	ReportID           string
	GeneratedAt        string
	GeneratedBy        string
	Description        string
	CatalogCode        int64
	ContractType       string
	Agent              string
	Sources            []string
	Rows               []row
	Method             string
	Adjustment         string
	Mean               string
	Median             string
	Lowest             string
	EstimatedPrice     string
	Details            string
	Issues             []string
	JustMethod         string
	JustDisregarded    string
	JustAdjustment     string
	JustFewerThanThree string
}

func buildView(d Document) (*view, error) {
	if d.Evaluation == nil {
		return nil, ErrNotEvaluated
	}
	res := d.Evaluation.Result
	r := d.Research

	v := &view{
		ReportID:       d.Report.ID,
		GeneratedAt:    d.Report.GeneratedAt.In(brt).Format("02/01/2006 15:04"),
		GeneratedBy:    d.Report.GeneratedBy,
		Description:    r.Description,
		CatalogCode:    r.CatalogCode,
		ContractType:   contractLabel(r.ContractType),
		Agent:          r.ResponsibleAgent,
		Method:         methodLabels[res.Method],
		Adjustment:     percent(res.AdjustmentPercent),
		Mean:           FormatBRL(res.Mean),
		Median:         FormatBRL(res.Median),
		Lowest:         FormatBRL(res.Lowest),
		EstimatedPrice: FormatBRL(res.EstimatedPrice),
		Details:        res.CalculationDetails,
		Issues:         res.ComplianceIssues,

		JustMethod:         orDefault(r.Justifications.Method, "Metodologia padrão aplicada."),
		JustDisregarded:    orDefault(r.Justifications.Disregarded, "Não houve descarte de preços."),
		JustAdjustment:     orDefault(r.Justifications.Adjustment, "Não houve ajuste sobre o preço de referência."),
		JustFewerThanThree: orDefault(r.Justifications.FewerThanThree, "A cesta de preços contém três ou mais cotações válidas."),
	}

	valid := make(map[string]bool, len(res.ValidObservationIDs))
	for _, id := range res.ValidObservationIDs {
		valid[id] = true
	}
	seen := make(map[model.SourceType]bool)
	for _, o := range r.Observations {
		rw := row{
			Source: o.SourceType.Label(),
			Label:  o.SourceLabel,
			Date:   o.CollectedDate.Time().Format("02/01/2006"),
			Price:  FormatBRL(o.Price),
			Notes:  o.Notes,
			Valid:  valid[o.ID],
		}
		switch reason, excluded := res.ExcludedObservations[o.ID]; {
		case rw.Valid:
			rw.Status = "válido"
			if !seen[o.SourceType] {
				seen[o.SourceType] = true
				v.Sources = append(v.Sources, o.SourceType.Label())
			}
		case excluded:
			rw.Status = "desconsiderado: " + reasonLabel(reason)
		default:
			rw.Status = "incluído após a avaliação"
		}
		v.Rows = append(v.Rows, rw)
	}
	return v, nil
}

// brt is Brasília time; reports are read by Brazilian agencies.
var brt = time.FixedZone("BRT", -3*60*60)

func contractLabel(c model.ContractType) string {
	if c == model.ContractServices {
		return "Serviços"
	}
	return "Bens"
}

func reasonLabel(reason string) string {
	if l, ok := reasonLabels[reason]; ok {
		return l
	}
	return reason
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

func percent(d decimal.Decimal) string {
	return strings.Replace(d.String(), ".", ",", 1) + "%"
}

// FormatBRL formats an amount as Brazilian currency, e.g. "R$ 1.234,56".
func FormatBRL(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	if d.IsNegative() {
		b.WriteString("-")
	}
	b.WriteString("R$ ")
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	b.WriteString(",")
	b.WriteString(frac)
	return b.String()
}
