package access

import (
	"github.com/clearview/reportline/pkg/models/domain"
)

// Resolver answers every permission question in the system. All checks are
// pure functions of the actor and the target; there is no ambient session
// state. Anything the resolver does not recognize is denied.
type Resolver interface {
	// HasAccessLevel holds iff the actor's level is at least as privileged
	// as the required one.
	HasAccessLevel(actor domain.StakeholderAccount, level domain.AccessLevel) bool
	// CanAccessDomain checks the actor's metric-domain scope. BOARD and
	// C_LEVEL are domain-unscoped by definition.
	CanAccessDomain(actor domain.StakeholderAccount, metricDomain string) bool
	// CanAccessSection combines the section type's minimum level with the
	// domain scope of its data source.
	CanAccessSection(actor domain.StakeholderAccount, def domain.SectionDefinition) bool
	// CanAuthorReports gates the report lifecycle API.
	CanAuthorReports(actor domain.StakeholderAccount) bool
}

// sectionMinLevel is the least privileged level allowed to include a
// section of the given type. Types absent from the map are denied.
var sectionMinLevel = map[domain.SectionType]domain.AccessLevel{
	domain.SectionExecutiveSummary: domain.AccessAnalyst,
	domain.SectionFinancial:        domain.AccessDepartmentHead,
	domain.SectionOperational:      domain.AccessAnalyst,
	domain.SectionStrategic:        domain.AccessAnalyst,
	domain.SectionRisk:             domain.AccessSeniorVP,
	domain.SectionCustomer:         domain.AccessAnalyst,
	domain.SectionCompliance:       domain.AccessSeniorVP,
}

type resolver struct{}

// NewResolver returns the standard privilege-order resolver.
func NewResolver() Resolver {
	return &resolver{}
}

func (r *resolver) HasAccessLevel(actor domain.StakeholderAccount, level domain.AccessLevel) bool {
	actorRank := actor.AccessLevel.Rank()
	levelRank := level.Rank()
	if actorRank < 0 || levelRank < 0 {
		return false
	}
	return actorRank <= levelRank
}

func (r *resolver) CanAccessDomain(actor domain.StakeholderAccount, metricDomain string) bool {
	if metricDomain == "" {
		return false
	}
	switch actor.AccessLevel {
	case domain.AccessBoard, domain.AccessCLevel:
		return true
	}
	if !r.HasAccessLevel(actor, domain.AccessAnalyst) {
		return false
	}
	return actor.HasDomain(metricDomain)
}

func (r *resolver) CanAccessSection(actor domain.StakeholderAccount, def domain.SectionDefinition) bool {
	min, ok := sectionMinLevel[def.Type]
	if !ok {
		return false
	}
	if !r.HasAccessLevel(actor, min) {
		return false
	}
	if def.DataSourceKey == "" {
		return true
	}
	return r.CanAccessDomain(actor, def.DataSourceKey)
}

func (r *resolver) CanAuthorReports(actor domain.StakeholderAccount) bool {
	return r.HasAccessLevel(actor, domain.AccessDepartmentHead)
}
