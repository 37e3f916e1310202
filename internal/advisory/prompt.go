package advisory

import (
	"fmt"
	"strings"

	"github.com/sells-group/price-research/internal/model"
)

const systemPrompt = `Você é um especialista em compras públicas brasileiras e na Instrução Normativa SEGES/ME nº 65/2021.
Sua análise é uma segunda opinião consultiva para o agente responsável pela pesquisa de preços.
Avalie a suficiência e a diversidade das fontes (Art. 5), preços inexequíveis, excessivamente elevados ou desatualizados (Art. 6),
e a necessidade de justificativas formais. Responda somente com um objeto JSON no formato:
{
  "complianceIssues": ["problemas de conformidade encontrados"],
  "estimatedCost": 0.00,
  "calculationDetails": "metodologia usada (média, mediana ou menor preço) e preços considerados"
}`

// buildPrompt renders the user message for an evaluation input.
func buildPrompt(in model.EvaluationInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Descrição do item ou serviço: %s\n\nDados de preços:\n", strings.TrimSpace(in.Description))
	for _, o := range in.Observations {
		fmt.Fprintf(&b, "- Fonte: %s (%s), Data: %s, Preço: %s",
			o.SourceLabel, o.SourceType.Label(), o.CollectedDate, o.Price.StringFixed(2))
		if o.Notes != "" {
			fmt.Fprintf(&b, ", Notas: %s", o.Notes)
		}
		b.WriteString("\n")
	}
	b.WriteString("\nIdentifique problemas de conformidade com a IN 65/2021 e calcule um custo estimado.")
	return b.String()
}

// cleanJSON extracts the JSON object from a model reply that may be wrapped
// in a markdown fence or surrounded by prose.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	for _, fence := range []string{"```json", "```"} {
		if strings.HasPrefix(text, fence) {
			text = strings.TrimPrefix(text, fence)
			if idx := strings.LastIndex(text, "```"); idx >= 0 {
				text = text[:idx]
			}
			break
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}
