package repository

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestListBoardQueryIsTenantScoped(t *testing.T) {
	query := strings.ToLower(listBoardQuery)

	requiredFragments := []string{
		"where d.tenant_id = $1",
		"l.tenant_id = d.tenant_id",
		"order by s.sort_order asc, d.sort_order asc",
	}
	for _, fragment := range requiredFragments {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected query fragment %q to be present", fragment)
		}
	}
}

func TestApplyStageOrderQueryIsScopedToTenantAndStage(t *testing.T) {
	query := strings.ToLower(applyStageOrderQuery)

	for _, fragment := range []string{"d.tenant_id = $1", "d.pipeline_stage_id = $2", "with ordinality"} {
		if !strings.Contains(query, fragment) {
			t.Fatalf("expected query fragment %q to be present", fragment)
		}
	}
}

func TestStageLockKeyIsPerTenantAndStage(t *testing.T) {
	tenantA, tenantB := uuid.New(), uuid.New()
	stage := uuid.New()

	if stageLockKey(tenantA, stage) == stageLockKey(tenantB, stage) {
		t.Fatal("lock keys must differ between tenants")
	}
	if stageLockKey(tenantA, stage) != stageLockKey(tenantA, stage) {
		t.Fatal("lock key must be deterministic")
	}
}
