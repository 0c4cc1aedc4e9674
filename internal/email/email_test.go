package email

import (
	"strings"
	"testing"
)

type smtpSettings struct{}

func (smtpSettings) GetSMTPHost() string         { return "smtp.test" }
func (smtpSettings) GetSMTPPort() int            { return 587 }
func (smtpSettings) GetSMTPUsername() string     { return "" }
func (smtpSettings) GetSMTPPassword() string     { return "" }
func (smtpSettings) GetEmailFromName() string    { return "Workshop CRM" }
func (smtpSettings) GetEmailFromAddress() string { return "crm@oficina.test" }
func (smtpSettings) IsSMTPEnabled() bool         { return true }

func TestFormatBRL(t *testing.T) {
	cases := map[int64]string{
		0:         "R$ 0,00",
		5:         "R$ 0,05",
		150000:    "R$ 1.500,00",
		123456:    "R$ 1.234,56",
		123456789: "R$ 1.234.567,89",
		-2500:     "-R$ 25,00",
	}
	for cents, want := range cases {
		if got := FormatBRL(cents); got != want {
			t.Errorf("FormatBRL(%d) = %q, want %q", cents, got, want)
		}
	}
}

func TestRenderDealOutcome(t *testing.T) {
	subject, body, err := RenderDealOutcome(DealOutcomeEmail{
		DealTitle:       "Revisão completa",
		LeadName:        "Carla Dias",
		SalespersonName: "Daniela Alves",
		ValueCents:      123456,
		LossReason:      "preço alto",
		BoardURL:        "https://crm.test/kanban",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "Negócio Perdido: Revisão completa" {
		t.Fatalf("unexpected subject %q", subject)
	}
	for _, want := range []string{"Carla Dias", "Daniela Alves", "R$ 1.234,56", "Motivo da perda: preço alto", "https://crm.test/kanban", "equipe Workshop CRM"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q", want)
		}
	}

	subject, body, err = RenderDealOutcome(DealOutcomeEmail{DealTitle: "Pintura", Won: true, LossReason: "ignored"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "Negócio Ganho: Pintura" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if strings.Contains(body, "Motivo da perda") {
		t.Fatal("won deals must not show a loss reason")
	}
}

func TestRenderLeadAssignedEscapesInput(t *testing.T) {
	subject, body, err := RenderLeadAssigned(LeadAssignedEmail{LeadName: "<b>Eve</b>", DealTitle: "Freios"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if subject != "Novo lead atribuído a você" {
		t.Fatalf("unexpected subject %q", subject)
	}
	if strings.Contains(body, "<b>Eve</b>") || !strings.Contains(body, "&lt;b&gt;Eve&lt;/b&gt;") {
		t.Fatal("lead name must be HTML escaped")
	}
}

func TestSMTPSenderBuildsMessage(t *testing.T) {
	s := NewSMTPSender(smtpSettings{})
	msg, err := s.buildMessage("ana@oficina.test", "Assunto", "<p>oi</p>")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if to := msg.GetTo(); len(to) != 1 || to[0].Address != "ana@oficina.test" {
		t.Fatalf("unexpected recipients %v", to)
	}

	if _, err := s.buildMessage("not an address", "x", "y"); err == nil {
		t.Fatal("expected invalid recipient to fail")
	}
}
