// Package pdf renders call-analysis reports and consolidated performance
// summaries as A4 PDF documents.
package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/projetosombra/sombra-api/internal/domain"
)

// Theme colors shared by all reports.
var (
	colorPrimary = [3]int{11, 99, 214}
	colorMuted   = [3]int{107, 114, 128}
	colorHeading = [3]int{17, 24, 39}
)

// Renderer builds PDF documents from domain data. It is stateless and safe
// for concurrent use.
type Renderer struct{}

// NewRenderer returns a PDF renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// RenderTaskAnalysis renders the analysis report for a single call. Both
// stored analysis shapes are supported; error sentinels render the recorded
// failure so operators can still export the document.
func (r *Renderer) RenderTaskAnalysis(task *domain.Task) ([]byte, error) {
	doc := newDoc(18)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	setColor := func(c [3]int) { doc.SetTextColor(c[0], c[1], c[2]) }

	doc.SetFont("Helvetica", "B", 18)
	setColor(colorPrimary)
	doc.MultiCell(0, 8, tr("Relatório de Análise de Chamada"), "", "L", false)
	doc.SetFont("Helvetica", "", 10)
	setColor(colorMuted)
	doc.MultiCell(0, 5, tr("Relatório gerado por Sombra IA"), "", "L", false)
	doc.Ln(6)

	doc.SetFont("Helvetica", "B", 11)
	setColor(colorPrimary)
	doc.MultiCell(0, 6, tr("Detalhes da Chamada"), "", "L", false)
	doc.Ln(2)

	saleswomanName := "N/A"
	if task.Saleswoman != nil {
		saleswomanName = task.Saleswoman.Name
	}
	r.labeledValue(doc, tr, "Cliente:", task.ClientName)
	r.labeledValue(doc, tr, "Vendedora:", saleswomanName)
	r.labeledValue(doc, tr, "Data:", task.CreatedAt.Format("02/01/2006 15:04"))
	doc.Ln(6)

	view := domain.ParseAnalysis(task.Analysis)
	switch view.Kind {
	case domain.AnalysisKindFeedback:
		r.renderFeedback(doc, tr, view.Feedback)
	case domain.AnalysisKindProfile:
		r.renderProfile(doc, tr, view.Profile)
	case domain.AnalysisKindError:
		doc.SetFont("Helvetica", "B", 14)
		setColor(colorHeading)
		doc.MultiCell(0, 7, tr("Análise Indisponível"), "", "L", false)
		doc.Ln(2)
		doc.SetFont("Helvetica", "", 11)
		doc.MultiCell(0, 6, tr(view.Error.Error), "", "L", false)
	default:
		return nil, fmt.Errorf("task %s has no renderable analysis", task.ID)
	}

	return finish(doc)
}

// RenderSummary renders a consolidated performance summary for a saleswoman.
// The summary text supports paragraph breaks and **bold** spans, matching
// what the worker produces.
func (r *Renderer) RenderSummary(saleswomanName, summary string, generatedAt time.Time) ([]byte, error) {
	doc := newDoc(25)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.SetFont("Helvetica", "B", 20)
	doc.SetTextColor(colorHeading[0], colorHeading[1], colorHeading[2])
	doc.MultiCell(0, 9, tr("Resumo de Desempenho: "+saleswomanName), "", "C", false)
	doc.SetFont("Helvetica", "", 9)
	doc.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
	doc.MultiCell(0, 5, tr(generatedAt.Format("02/01/2006")), "", "C", false)
	doc.Ln(10)

	doc.SetTextColor(colorHeading[0], colorHeading[1], colorHeading[2])
	writeRichText(doc, tr, summary, 11)

	return finish(doc)
}

func (r *Renderer) renderFeedback(doc *fpdf.Fpdf, tr func(string) string, fb *domain.FeedbackAnalysis) {
	doc.SetFont("Helvetica", "B", 14)
	doc.SetTextColor(colorHeading[0], colorHeading[1], colorHeading[2])
	doc.MultiCell(0, 7, tr("Feedback Geral"), "", "L", false)
	doc.Ln(2)

	summary := fb.OverallFeedback.Summary
	if summary == "" {
		summary = "N/A"
	}
	doc.SetFont("Helvetica", "", 11)
	doc.MultiCell(0, 6, tr(summary), "", "J", false)
	doc.Ln(6)

	if len(fb.CrucialMoments) == 0 {
		return
	}

	doc.SetFont("Helvetica", "B", 14)
	doc.MultiCell(0, 7, tr("Momentos Cruciais para Melhoria"), "", "L", false)
	doc.Ln(3)

	for _, moment := range fb.CrucialMoments {
		title := moment.MomentTitle
		if title == "" {
			title = "Momento Crucial"
		}
		doc.SetFont("Helvetica", "B", 12)
		doc.SetTextColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
		doc.MultiCell(0, 6, tr(title), "", "L", false)

		doc.SetFont("Helvetica", "I", 10)
		doc.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
		doc.MultiCell(0, 5, tr(`"`+orDash(moment.SalespersonLine)+`"`), "", "L", false)
		doc.Ln(2)

		r.labeledParagraph(doc, tr, "Problema Identificado:", moment.Problem)
		r.labeledParagraph(doc, tr, "Sugestão de Melhoria:", moment.Improvement)
		doc.Ln(3)
	}
}

func (r *Renderer) renderProfile(doc *fpdf.Fpdf, tr func(string) string, p *domain.ProfileAnalysis) {
	heading := func(text string) {
		doc.SetFont("Helvetica", "B", 14)
		doc.SetTextColor(colorHeading[0], colorHeading[1], colorHeading[2])
		doc.MultiCell(0, 7, tr(text), "", "L", false)
		doc.Ln(2)
	}

	heading("Resumo da Chamada")
	doc.SetFont("Helvetica", "", 11)
	doc.MultiCell(0, 6, tr(orDash(p.Summary)), "", "J", false)
	doc.Ln(6)

	heading("Perfil do Cliente")
	r.labeledValue(doc, tr, "Nome:", orDash(p.CustomerProfile.Name))
	r.labeledValue(doc, tr, "Perfil:", orDash(p.CustomerProfile.Profile))
	r.labeledValue(doc, tr, "Estilo de Comunicação:", orDash(p.CustomerProfile.CommunicationStyle))
	doc.Ln(4)

	heading(fmt.Sprintf("Desempenho — Nota Geral: %.1f", p.Performance.OverallScore))
	stages := make([]string, 0, len(p.Performance.Stages))
	for name := range p.Performance.Stages {
		stages = append(stages, name)
	}
	sort.Strings(stages)
	for _, name := range stages {
		stage := p.Performance.Stages[name]
		doc.SetFont("Helvetica", "B", 11)
		doc.SetTextColor(colorPrimary[0], colorPrimary[1], colorPrimary[2])
		doc.MultiCell(0, 6, tr(fmt.Sprintf("%s (%.1f)", name, stage.Score)), "", "L", false)
		doc.SetFont("Helvetica", "", 11)
		doc.SetTextColor(colorHeading[0], colorHeading[1], colorHeading[2])
		doc.MultiCell(0, 6, tr(orDash(stage.Feedback)), "", "J", false)
		if stage.ImprovementSuggestion != "" {
			doc.SetFont("Helvetica", "I", 10)
			doc.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
			doc.MultiCell(0, 5, tr(stage.ImprovementSuggestion), "", "L", false)
		}
		doc.Ln(2)
	}
	doc.Ln(2)

	if len(p.ImprovementPoints) == 0 {
		return
	}
	heading("Pontos de Melhoria")
	for _, point := range p.ImprovementPoints {
		doc.SetFont("Helvetica", "I", 10)
		doc.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
		doc.MultiCell(0, 5, tr(`"`+orDash(point.SalespersonLine)+`"`), "", "L", false)
		r.labeledParagraph(doc, tr, "Contexto:", point.Context)
		r.labeledParagraph(doc, tr, "Sugestão:", point.Suggestion)
		doc.Ln(3)
	}
}

func (r *Renderer) labeledValue(doc *fpdf.Fpdf, tr func(string) string, label, value string) {
	doc.SetFont("Helvetica", "B", 9)
	doc.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
	doc.MultiCell(0, 5, tr(label), "", "L", false)
	doc.SetFont("Helvetica", "", 11)
	doc.SetTextColor(colorHeading[0], colorHeading[1], colorHeading[2])
	doc.MultiCell(0, 6, tr(value), "", "L", false)
	doc.Ln(1)
}

func (r *Renderer) labeledParagraph(doc *fpdf.Fpdf, tr func(string) string, label, value string) {
	doc.SetFont("Helvetica", "B", 10)
	doc.SetTextColor(colorMuted[0], colorMuted[1], colorMuted[2])
	doc.MultiCell(0, 5, tr(label), "", "L", false)
	doc.SetFont("Helvetica", "", 11)
	doc.SetTextColor(colorHeading[0], colorHeading[1], colorHeading[2])
	doc.MultiCell(0, 6, tr(orDash(value)), "", "J", false)
	doc.Ln(1)
}

// writeRichText renders text with paragraph breaks and **bold** spans.
func writeRichText(doc *fpdf.Fpdf, tr func(string) string, text string, size float64) {
	for _, paragraph := range strings.Split(text, "\n") {
		if strings.TrimSpace(paragraph) == "" {
			doc.Ln(5)
			continue
		}

		for _, span := range splitBoldSpans(paragraph) {
			style := ""
			content := span
			if strings.HasPrefix(span, "**") && strings.HasSuffix(span, "**") && len(span) > 4 {
				style = "B"
				content = span[2 : len(span)-2]
			}
			doc.SetFont("Helvetica", style, size)
			doc.Write(6, tr(content))
		}
		doc.Ln(8)
	}
}

// splitBoldSpans splits a line into plain and **bold** segments, keeping the
// markers on bold segments.
func splitBoldSpans(line string) []string {
	var spans []string
	for len(line) > 0 {
		open := strings.Index(line, "**")
		if open < 0 {
			spans = append(spans, line)
			break
		}
		close := strings.Index(line[open+2:], "**")
		if close < 0 {
			spans = append(spans, line)
			break
		}
		if open > 0 {
			spans = append(spans, line[:open])
		}
		spans = append(spans, line[open:open+2+close+2])
		line = line[open+2+close+2:]
	}
	return spans
}

func newDoc(margin float64) *fpdf.Fpdf {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(margin, margin, margin)
	doc.SetAutoPageBreak(true, margin)
	doc.AddPage()
	return doc
}

func finish(doc *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendering PDF: %w", err)
	}
	return buf.Bytes(), nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "—"
	}
	return s
}
