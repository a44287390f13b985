package access

import (
	"testing"

	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/stretchr/testify/assert"
)

func actor(level domain.AccessLevel, domains ...string) domain.StakeholderAccount {
	return domain.StakeholderAccount{
		ID:           "acc-1",
		Email:        "actor@example.com",
		AccessLevel:  level,
		DomainAccess: domains,
	}
}

func TestHasAccessLevel(t *testing.T) {
	r := NewResolver()

	levels := []domain.AccessLevel{
		domain.AccessBoard,
		domain.AccessCLevel,
		domain.AccessSeniorVP,
		domain.AccessDepartmentHead,
		domain.AccessAnalyst,
	}

	// hasAccessLevel(actor, L) == (rank(actor) <= rank(L)) for the whole grid.
	for _, actorLevel := range levels {
		for _, required := range levels {
			got := r.HasAccessLevel(actor(actorLevel), required)
			want := actorLevel.Rank() <= required.Rank()
			assert.Equalf(t, want, got, "actor=%s required=%s", actorLevel, required)
		}
	}
}

func TestHasAccessLevel_BoardSatisfiesEverything(t *testing.T) {
	r := NewResolver()
	board := actor(domain.AccessBoard)

	for _, required := range []domain.AccessLevel{
		domain.AccessBoard, domain.AccessCLevel, domain.AccessSeniorVP,
		domain.AccessDepartmentHead, domain.AccessAnalyst,
	} {
		assert.True(t, r.HasAccessLevel(board, required))
	}
}

func TestHasAccessLevel_UnknownIsDenied(t *testing.T) {
	r := NewResolver()

	assert.False(t, r.HasAccessLevel(actor("INTERN"), domain.AccessAnalyst))
	assert.False(t, r.HasAccessLevel(actor("INTERN"), "INTERN"))
	assert.False(t, r.HasAccessLevel(actor(domain.AccessBoard), "SUPERUSER"))
}

func TestCanAccessDomain(t *testing.T) {
	r := NewResolver()

	tests := []struct {
		name   string
		actor  domain.StakeholderAccount
		domain string
		want   bool
	}{
		{"board is unscoped", actor(domain.AccessBoard), "sales", true},
		{"c-level is unscoped", actor(domain.AccessCLevel), "performance", true},
		{"analyst with grant", actor(domain.AccessAnalyst, "sales"), "sales", true},
		{"analyst without grant", actor(domain.AccessAnalyst, "sales"), "inventory", false},
		{"senior vp without grant", actor(domain.AccessSeniorVP), "sales", false},
		{"empty domain denied", actor(domain.AccessBoard), "", false},
		{"unknown level denied", actor("GUEST", "sales"), "sales", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.CanAccessDomain(tt.actor, tt.domain))
		})
	}
}

func TestCanAccessSection(t *testing.T) {
	r := NewResolver()

	financial := domain.SectionDefinition{
		ID:            "financial_performance",
		Type:          domain.SectionFinancial,
		DataSourceKey: "sales",
	}
	risk := domain.SectionDefinition{
		ID:   "risk_assessment",
		Type: domain.SectionRisk,
	}
	unknown := domain.SectionDefinition{
		ID:   "mystery",
		Type: "mystery",
	}

	assert.True(t, r.CanAccessSection(actor(domain.AccessCLevel), financial))
	assert.True(t, r.CanAccessSection(actor(domain.AccessDepartmentHead, "sales"), financial))
	assert.False(t, r.CanAccessSection(actor(domain.AccessDepartmentHead), financial),
		"level suffices but domain grant is missing")
	assert.False(t, r.CanAccessSection(actor(domain.AccessAnalyst, "sales"), financial),
		"domain granted but level too low")

	assert.True(t, r.CanAccessSection(actor(domain.AccessSeniorVP), risk))
	assert.False(t, r.CanAccessSection(actor(domain.AccessDepartmentHead), risk))

	// Unknown section types fail closed.
	assert.False(t, r.CanAccessSection(actor(domain.AccessBoard), unknown))
}

func TestCanAuthorReports(t *testing.T) {
	r := NewResolver()

	assert.True(t, r.CanAuthorReports(actor(domain.AccessDepartmentHead)))
	assert.True(t, r.CanAuthorReports(actor(domain.AccessBoard)))
	assert.False(t, r.CanAuthorReports(actor(domain.AccessAnalyst)))
}
