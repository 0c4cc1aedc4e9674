// Package email renders and delivers the CRM's transactional emails.
package email

import "context"

// DealOutcomeEmail is sent to business owners when a deal is won or lost.
type DealOutcomeEmail struct {
	DealTitle       string
	Won             bool
	LeadName        string
	SalespersonName string
	ValueCents      int64
	LossReason      string
	BoardURL        string
}

// LeadAssignedEmail is sent to a salesperson who received a lead.
type LeadAssignedEmail struct {
	LeadName       string
	DealTitle      string
	AssignedByName string
	BoardURL       string
}

// Sender delivers rendered emails.
type Sender interface {
	SendDealOutcomeEmail(ctx context.Context, toEmail string, data DealOutcomeEmail) error
	SendLeadAssignedEmail(ctx context.Context, toEmail string, data LeadAssignedEmail) error
}

// NoopSender drops every email. Used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendDealOutcomeEmail(ctx context.Context, toEmail string, data DealOutcomeEmail) error {
	return nil
}

func (NoopSender) SendLeadAssignedEmail(ctx context.Context, toEmail string, data LeadAssignedEmail) error {
	return nil
}

var (
	_ Sender = NoopSender{}
	_ Sender = (*SMTPSender)(nil)
)
