package report

import (
	"html"
	htmltemplate "html/template"
	"io"
	"text/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rotisserie/eris"
)

var (
	// richPolicy allows the basic formatting analysts paste into justifications.
	richPolicy   = bluemonday.UGCPolicy()
	strictPolicy = bluemonday.StrictPolicy()
)

// plain strips markup from analyst-entered text.
func plain(s string) string {
	return html.UnescapeString(strictPolicy.Sanitize(s))
}

func rich(s string) htmltemplate.HTML {
	return htmltemplate.HTML(richPolicy.Sanitize(s)) //nolint:gosec // sanitized above
}

var textTmpl = template.Must(template.New("text").Funcs(template.FuncMap{"plain": plain}).Parse(
	`NOTA TÉCNICA DE PESQUISA DE PREÇOS
Relatório {{.ReportID}} - gerado em {{.GeneratedAt}} por {{.GeneratedBy}}

I - OBJETO DA CONTRATAÇÃO
{{.Description}}
Tipo: {{.ContractType}}{{if .CatalogCode}} | CATMAT: {{.CatalogCode}}{{end}}

II - FONTES CONSULTADAS (IN SEGES/ME nº 65/2021, Art. 5º)
{{range .Sources}}- {{.}}
{{else}}- nenhuma fonte válida
{{end}}
III - SÉRIE DE PREÇOS COLETADOS
{{range .Rows}}- {{.Source}} | {{.Label}} | {{.Date}} | {{.Price}} | {{.Status}}{{if .Notes}} | {{.Notes}}{{end}}
{{end}}
IV - METODOLOGIA
Preço estimado obtido pela {{.Method}} dos preços válidos{{if ne .Adjustment "0%"}}, com ajuste de {{.Adjustment}}{{end}}.
Justificativa da metodologia: {{plain .JustMethod}}
Justificativa para descarte de preços: {{plain .JustDisregarded}}
Justificativa do ajuste: {{plain .JustAdjustment}}
Justificativa para cesta com menos de 3 preços: {{plain .JustFewerThanThree}}

V - MEMÓRIA DE CÁLCULO E CONCLUSÃO
Média: {{.Mean}} | Mediana: {{.Median}} | Menor preço: {{.Lowest}}
{{.Details}}

VALOR ESTIMADO FINAL: {{.EstimatedPrice}}

VI - APONTAMENTOS DE CONFORMIDADE
{{range .Issues}}- {{.}}
{{else}}Nenhum apontamento.
{{end}}
VII - AGENTE RESPONSÁVEL
{{.Agent}}
`))

var htmlTmpl = htmltemplate.Must(htmltemplate.New("html").Funcs(htmltemplate.FuncMap{"rich": rich}).Parse(
	`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>Nota Técnica {{.ReportID}}</title>
<style>
body { font-family: sans-serif; font-size: 12pt; margin: 2cm; }
h1 { text-align: center; font-size: 16pt; }
h2 { font-size: 13pt; border-bottom: 1px solid #999; }
table { border-collapse: collapse; width: 100%; }
th, td { border: 1px solid #ccc; padding: 4px; text-align: left; }
td.price { text-align: right; }
tr.excluded { color: #777; }
.total { font-size: 14pt; font-weight: bold; text-align: center; }
</style>
</head>
<body>
<h1>NOTA TÉCNICA DE PESQUISA DE PREÇOS</h1>
<p>Relatório {{.ReportID}} - gerado em {{.GeneratedAt}} por {{.GeneratedBy}}</p>

<h2>I - OBJETO DA CONTRATAÇÃO</h2>
<p>{{.Description}}</p>
<p>Tipo: {{.ContractType}}{{if .CatalogCode}} | CATMAT: {{.CatalogCode}}{{end}}</p>

<h2>II - FONTES CONSULTADAS</h2>
<ul>
{{range .Sources}}<li>{{.}}</li>
{{else}}<li>nenhuma fonte válida</li>
{{end}}</ul>

<h2>III - SÉRIE DE PREÇOS COLETADOS</h2>
<table>
<thead><tr><th>Fonte da pesquisa</th><th>Fonte específica</th><th>Data</th><th>Valor</th><th>Situação</th></tr></thead>
<tbody>
{{range .Rows}}<tr{{if not .Valid}} class="excluded"{{end}}><td>{{.Source}}</td><td>{{.Label}}{{if .Notes}}<br><small>{{.Notes}}</small>{{end}}</td><td>{{.Date}}</td><td class="price">{{.Price}}</td><td>{{.Status}}</td></tr>
{{end}}</tbody>
</table>

<h2>IV - METODOLOGIA</h2>
<p>Preço estimado obtido pela <strong>{{.Method}}</strong> dos preços válidos{{if ne .Adjustment "0%"}}, com ajuste de {{.Adjustment}}{{end}}.</p>
<p><strong>Justificativa da metodologia:</strong> {{rich .JustMethod}}</p>
<p><strong>Justificativa para descarte de preços:</strong> {{rich .JustDisregarded}}</p>
<p><strong>Justificativa do ajuste:</strong> {{rich .JustAdjustment}}</p>
<p><strong>Justificativa para cesta com menos de 3 preços:</strong> {{rich .JustFewerThanThree}}</p>

<h2>V - MEMÓRIA DE CÁLCULO E CONCLUSÃO</h2>
<p>Média: {{.Mean}} | Mediana: {{.Median}} | Menor preço: {{.Lowest}}</p>
<pre>{{.Details}}</pre>
<p class="total">Valor estimado final: {{.EstimatedPrice}}</p>

<h2>VI - APONTAMENTOS DE CONFORMIDADE</h2>
<ul>
{{range .Issues}}<li>{{.}}</li>
{{else}}<li>Nenhum apontamento.</li>
{{end}}</ul>

<h2>VII - AGENTE RESPONSÁVEL</h2>
<p>{{.Agent}}</p>
</body>
</html>
`))

// Text writes the report as plain text.
func Text(w io.Writer, d Document) error {
	v, err := buildView(d)
	if err != nil {
		return err
	}
	return eris.Wrap(textTmpl.Execute(w, v), "report: render text")
}

// HTML writes the report as a printable HTML page. Justifications keep
// basic formatting after sanitization; every other field is escaped.
func HTML(w io.Writer, d Document) error {
	v, err := buildView(d)
	if err != nil {
		return err
	}
	return eris.Wrap(htmlTmpl.Execute(w, v), "report: render html")
}
