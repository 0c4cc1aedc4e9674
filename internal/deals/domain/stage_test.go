package domain

import (
	"testing"

	"workshop_crm_backend/platform/apperr"
)

func TestRequiresLossReason(t *testing.T) {
	if !RequiresLossReason(StageLost) {
		t.Fatal("Lost must require a reason")
	}
	for _, name := range []string{StageNewLead, StageContacted, StageWon, "lost"} {
		if RequiresLossReason(name) {
			t.Errorf("%q must not require a reason", name)
		}
	}
}

func TestNormalizeLossReason(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "", true},
		{"  x ", "", true},
		{"ok", "ok", false},
		{"  preço alto  ", "preço alto", false},
		{"çã", "çã", false},
	}
	for _, tc := range cases {
		got, err := NormalizeLossReason(tc.in)
		if tc.wantErr {
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("NormalizeLossReason(%q): expected validation error, got %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("NormalizeLossReason(%q) = (%q, %v), want %q", tc.in, got, err, tc.want)
		}
	}
}
