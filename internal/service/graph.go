package service

import (
	"context"
	"fmt"

	"github.com/jjenkins/laborwatch/internal/model"
)

// JurisdictionDirectory is the slice of the jurisdiction store the graph and
// coordinator need
type JurisdictionDirectory interface {
	GetByID(ctx context.Context, id int) (*model.Jurisdiction, error)
}

// RequirementLister lists a jurisdiction's local requirements
type RequirementLister interface {
	ListByJurisdiction(ctx context.Context, jurisdictionID int) ([]model.Requirement, error)
}

// LegislationLister lists a jurisdiction's local legislation
type LegislationLister interface {
	ListByJurisdiction(ctx context.Context, jurisdictionID int) ([]model.Legislation, error)
}

// GraphService resolves effective requirements and legislation across the
// jurisdiction hierarchy. Inheritance is computed at read time and never
// materialized: deleting a parent record immediately stops a child from
// resolving it, with no write to the child.
type GraphService struct {
	jurisdictions JurisdictionDirectory
	requirements  RequirementLister
	legislation   LegislationLister
}

// NewGraphService creates a GraphService
func NewGraphService(jurisdictions JurisdictionDirectory, requirements RequirementLister, legislation LegislationLister) *GraphService {
	return &GraphService{
		jurisdictions: jurisdictions,
		requirements:  requirements,
		legislation:   legislation,
	}
}

// EffectiveRequirements returns the requirements governing a jurisdiction.
// Local records win per category; where the jurisdiction inherits and has no
// local record in a category an ancestor has, the ancestor's record is
// included tagged as inherited. Inheritance is transitive while each link in
// the chain opts in.
func (g *GraphService) EffectiveRequirements(ctx context.Context, jurisdictionID int) ([]model.Requirement, error) {
	var effective []model.Requirement
	seenCategories := map[string]bool{}

	err := g.walkChain(ctx, jurisdictionID, func(j *model.Jurisdiction, inherited bool) error {
		records, err := g.requirements.ListByJurisdiction(ctx, j.ID)
		if err != nil {
			return err
		}
		for _, r := range records {
			if seenCategories[r.Category] {
				continue
			}
			r.Inherited = inherited
			effective = append(effective, r)
		}
		// Categories become visible only after the whole level is
		// merged, so two records in one category at the same level
		// both survive to surface the data-quality problem.
		for _, r := range records {
			seenCategories[r.Category] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return effective, nil
}

// EffectiveLegislation mirrors EffectiveRequirements for tracked legislation
func (g *GraphService) EffectiveLegislation(ctx context.Context, jurisdictionID int) ([]model.Legislation, error) {
	var effective []model.Legislation
	seenCategories := map[string]bool{}

	err := g.walkChain(ctx, jurisdictionID, func(j *model.Jurisdiction, inherited bool) error {
		records, err := g.legislation.ListByJurisdiction(ctx, j.ID)
		if err != nil {
			return err
		}
		for _, l := range records {
			if seenCategories[l.Category] {
				continue
			}
			l.Inherited = inherited
			effective = append(effective, l)
		}
		for _, l := range records {
			seenCategories[l.Category] = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return effective, nil
}

// walkChain visits a jurisdiction and then its ancestors for as long as each
// link opts into inheritance. A seen set guards against corrupt parent
// graphs; the invariant says cycles cannot exist, but a read must not hang if
// one does.
func (g *GraphService) walkChain(ctx context.Context, startID int, visit func(j *model.Jurisdiction, inherited bool) error) error {
	seen := map[int]bool{}
	id := startID

	for {
		if seen[id] {
			return fmt.Errorf("parent graph contains a cycle at jurisdiction %d", id)
		}
		seen[id] = true

		j, err := g.jurisdictions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if j == nil {
			if id == startID {
				return fmt.Errorf("jurisdiction %d not found", id)
			}
			return nil
		}

		if err := visit(j, id != startID); err != nil {
			return err
		}

		if !j.InheritsFromParent || !j.ParentID.Valid {
			return nil
		}
		id = int(j.ParentID.Int64)
	}
}
