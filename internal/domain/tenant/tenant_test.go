package tenant

import (
	"errors"
	"testing"

	"github.com/matehq/mate/internal/domain"
)

func TestStatusGraphAllowsForwardPath(t *testing.T) {
	steps := []DeploymentStatus{
		StatusProvisioning, StatusConfiguring, StatusActive,
		StatusSuspended, StatusActive, StatusSuspended, StatusTerminated,
	}
	tn := &Tenant{Subdomain: "acme", DeploymentStatus: StatusPending}
	for _, next := range steps {
		if err := tn.Transition(next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
}

func TestStatusGraphRejectsSkips(t *testing.T) {
	cases := []struct {
		from, to DeploymentStatus
	}{
		{StatusPending, StatusActive},
		{StatusPending, StatusSuspended},
		{StatusProvisioning, StatusActive},
		{StatusActive, StatusProvisioning},
		{StatusActive, StatusTerminated},
		{StatusTerminated, StatusActive},
		{StatusTerminated, StatusProvisioning},
	}
	for _, c := range cases {
		tn := &Tenant{Subdomain: "acme", DeploymentStatus: c.from}
		err := tn.Transition(c.to)
		if !errors.Is(err, domain.ErrInvalidState) {
			t.Fatalf("%s -> %s: expected ErrInvalidState, got %v", c.from, c.to, err)
		}
		if tn.DeploymentStatus != c.from {
			t.Fatalf("%s -> %s: status mutated on rejected transition", c.from, c.to)
		}
	}
}

func TestFailedAllowsRetry(t *testing.T) {
	tn := &Tenant{Subdomain: "acme", DeploymentStatus: StatusFailed}
	if err := tn.Transition(StatusProvisioning); err != nil {
		t.Fatalf("failed -> provisioning should be allowed: %v", err)
	}
}

func TestResourceName(t *testing.T) {
	tn := &Tenant{Subdomain: "acme"}
	if got := tn.ResourceName("db"); got != "mate-acme-db" {
		t.Fatalf("expected mate-acme-db, got %s", got)
	}
}

func TestApplyPlanLimitsDefaultsToStarter(t *testing.T) {
	tn := &Tenant{}
	tn.ApplyPlanLimits()
	if tn.Plan != PlanStarter {
		t.Fatalf("expected starter, got %s", tn.Plan)
	}
	if tn.MaxStorageGB != 100 || tn.MaxUsers != 50 {
		t.Fatalf("unexpected starter limits: %d GB, %d users", tn.MaxStorageGB, tn.MaxUsers)
	}
}

func TestEstimateMonthlyCostGrowsWithPlan(t *testing.T) {
	starter := &Tenant{Plan: PlanStarter}
	starter.ApplyPlanLimits()
	enterprise := &Tenant{Plan: PlanEnterprise}
	enterprise.ApplyPlanLimits()

	if starter.EstimateMonthlyCost() <= 0 {
		t.Fatal("starter cost must be positive")
	}
	if enterprise.EstimateMonthlyCost() <= starter.EstimateMonthlyCost() {
		t.Fatal("enterprise cost must exceed starter cost")
	}

	// The instance classes themselves differ per plan, so the estimate
	// must still grow when storage is held equal.
	a := &Tenant{Plan: PlanStarter, MaxStorageGB: 500}
	b := &Tenant{Plan: PlanProfessional, MaxStorageGB: 500}
	c := &Tenant{Plan: PlanEnterprise, MaxStorageGB: 500}
	if !(a.EstimateMonthlyCost() < b.EstimateMonthlyCost() &&
		b.EstimateMonthlyCost() < c.EstimateMonthlyCost()) {
		t.Fatalf("costs at equal storage = %.2f / %.2f / %.2f, want strictly increasing",
			a.EstimateMonthlyCost(), b.EstimateMonthlyCost(), c.EstimateMonthlyCost())
	}
}

func TestResourceStatusTerminal(t *testing.T) {
	for _, s := range []ResourceStatus{ResourceDeleted, ResourceFailed} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
	for _, s := range []ResourceStatus{ResourceCreating, ResourceActive, ResourceUpdating, ResourceDeleting} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
}
