package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title    string
	Heading  string
	CTALabel string
	CTAURL   string
}

type dealOutcomeEmailData struct {
	baseEmailData
	DealTitle       string
	OutcomeLabel    string
	LeadName        string
	SalespersonName string
	ValueFormatted  string
	LossReason      string
}

type leadAssignedEmailData struct {
	baseEmailData
	LeadName       string
	DealTitle      string
	AssignedByName string
}

const ctaBoard = "Ver no Kanban"

func outcomeLabel(won bool) string {
	if won {
		return labelWon
	}
	return labelLost
}

// RenderDealOutcome returns the subject and HTML body of a deal outcome email.
func RenderDealOutcome(data DealOutcomeEmail) (string, string, error) {
	label := outcomeLabel(data.Won)
	subject := fmt.Sprintf(subjectDealOutcomeFmt, label, data.DealTitle)
	view := dealOutcomeEmailData{
		baseEmailData: baseEmailData{
			Title:    subject,
			Heading:  "Negócio " + label,
			CTALabel: ctaBoard,
			CTAURL:   data.BoardURL,
		},
		DealTitle:       data.DealTitle,
		OutcomeLabel:    label,
		LeadName:        data.LeadName,
		SalespersonName: data.SalespersonName,
		ValueFormatted:  FormatBRL(data.ValueCents),
	}
	if !data.Won {
		view.LossReason = data.LossReason
	}
	body, err := renderEmailTemplate("deal_outcome.html", view)
	return subject, body, err
}

// RenderLeadAssigned returns the subject and HTML body of a lead assignment email.
func RenderLeadAssigned(data LeadAssignedEmail) (string, string, error) {
	body, err := renderEmailTemplate("lead_assigned.html", leadAssignedEmailData{
		baseEmailData: baseEmailData{
			Title:    subjectLeadAssigned,
			Heading:  subjectLeadAssigned,
			CTALabel: ctaBoard,
			CTAURL:   data.BoardURL,
		},
		LeadName:       data.LeadName,
		DealTitle:      data.DealTitle,
		AssignedByName: data.AssignedByName,
	})
	return subjectLeadAssigned, body, err
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

// FormatBRL renders cents as Brazilian reais, e.g. "R$ 1.234,56".
func FormatBRL(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := strconv.FormatInt(cents/100, 10)
	var grouped strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	return fmt.Sprintf("%sR$ %s,%02d", sign, grouped.String(), cents%100)
}
