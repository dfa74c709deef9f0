package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/laborwatch/internal/model"
	"github.com/jjenkins/laborwatch/internal/service"
	"github.com/jjenkins/laborwatch/internal/store"
)

type jurisdictionView struct {
	ID                 int     `json:"id"`
	Level              string  `json:"level"`
	City               string  `json:"city"`
	State              string  `json:"state"`
	County             *string `json:"county,omitempty"`
	ParentID           *int    `json:"parent_id,omitempty"`
	InheritsFromParent bool    `json:"inherits_from_parent"`
}

type requirementView struct {
	ID             int       `json:"id"`
	Category       string    `json:"category"`
	Title          string    `json:"title"`
	CurrentValue   string    `json:"current_value"`
	PreviousValue  *string   `json:"previous_value,omitempty"`
	SourceName     *string   `json:"source_name,omitempty"`
	SourceURL      *string   `json:"source_url,omitempty"`
	EffectiveDate  *string   `json:"effective_date,omitempty"`
	LastVerifiedAt time.Time `json:"last_verified_at"`
	LastChangedAt  time.Time `json:"last_changed_at"`
	Inherited      bool      `json:"inherited"`
}

type legislationView struct {
	ID            int     `json:"id"`
	Category      string  `json:"category"`
	Title         string  `json:"title"`
	CurrentStatus string  `json:"current_status"`
	CurrentValue  string  `json:"current_value"`
	SourceName    *string `json:"source_name,omitempty"`
	SourceURL     *string `json:"source_url,omitempty"`
	EffectiveDate *string `json:"effective_date,omitempty"`
	Inherited     bool    `json:"inherited"`
}

type locationView struct {
	ID                  int        `json:"id"`
	CompanyName         string     `json:"company_name"`
	Name                string     `json:"name"`
	AutoCheckEnabled    bool       `json:"auto_check_enabled"`
	NextAutoCheck       *time.Time `json:"next_auto_check,omitempty"`
	LastComplianceCheck *time.Time `json:"last_compliance_check,omitempty"`
}

func viewJurisdiction(j *model.Jurisdiction) jurisdictionView {
	v := jurisdictionView{
		ID:                 j.ID,
		Level:              string(j.Level),
		City:               j.City,
		State:              j.State,
		InheritsFromParent: j.InheritsFromParent,
	}
	if j.County.Valid {
		v.County = &j.County.String
	}
	if j.ParentID.Valid {
		parentID := int(j.ParentID.Int64)
		v.ParentID = &parentID
	}
	return v
}

func viewRequirement(r model.Requirement) requirementView {
	v := requirementView{
		ID:             r.ID,
		Category:       r.Category,
		Title:          r.Title,
		CurrentValue:   r.CurrentValue,
		LastVerifiedAt: r.LastVerifiedAt,
		LastChangedAt:  r.LastChangedAt,
		Inherited:      r.Inherited,
	}
	if r.PreviousValue.Valid {
		v.PreviousValue = &r.PreviousValue.String
	}
	if r.SourceName.Valid {
		v.SourceName = &r.SourceName.String
	}
	if r.SourceURL.Valid {
		v.SourceURL = &r.SourceURL.String
	}
	if r.EffectiveDate.Valid {
		d := r.EffectiveDate.Time.Format("2006-01-02")
		v.EffectiveDate = &d
	}
	return v
}

func viewLegislation(l model.Legislation) legislationView {
	v := legislationView{
		ID:            l.ID,
		Category:      l.Category,
		Title:         l.Title,
		CurrentStatus: string(l.CurrentStatus),
		CurrentValue:  l.CurrentValue,
		Inherited:     l.Inherited,
	}
	if l.SourceName.Valid {
		v.SourceName = &l.SourceName.String
	}
	if l.SourceURL.Valid {
		v.SourceURL = &l.SourceURL.String
	}
	if l.EffectiveDate.Valid {
		d := l.EffectiveDate.Time.Format("2006-01-02")
		v.EffectiveDate = &d
	}
	return v
}

func viewLocation(l model.Location) locationView {
	v := locationView{
		ID:               l.ID,
		CompanyName:      l.CompanyName,
		Name:             l.Name,
		AutoCheckEnabled: l.AutoCheckEnabled,
	}
	if l.NextAutoCheck.Valid {
		v.NextAutoCheck = &l.NextAutoCheck.Time
	}
	if l.LastComplianceCheck.Valid {
		v.LastComplianceCheck = &l.LastComplianceCheck.Time
	}
	return v
}

// errorStatus maps the error taxonomy onto HTTP status codes
func errorStatus(err error) int {
	var validation *store.ValidationError
	var cyclic *store.CyclicParentError

	switch {
	case errors.As(err, &validation):
		return fiber.StatusBadRequest
	case errors.Is(err, store.ErrHasLinkedLocations), errors.As(err, &cyclic):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ListJurisdictionsHandler returns all jurisdictions with their derived
// counters
func ListJurisdictionsHandler(jurisdictions *store.JurisdictionStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()
		all, err := jurisdictions.GetAll(ctx)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load jurisdictions"})
		}

		type listEntry struct {
			jurisdictionView
			model.JurisdictionCounts
		}

		entries := make([]listEntry, 0, len(all))
		for i := range all {
			counts, err := jurisdictions.Counts(ctx, all[i].ID)
			if err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load counters"})
			}
			entries = append(entries, listEntry{viewJurisdiction(&all[i]), counts})
		}

		return c.JSON(fiber.Map{"jurisdictions": entries})
	}
}

// JurisdictionDetailHandler returns one jurisdiction with its effective
// (inheritance-resolved) requirements and legislation, locations and children
func JurisdictionDetailHandler(jurisdictions *store.JurisdictionStore, graph *service.GraphService, locations *store.LocationStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid jurisdiction id"})
		}

		j, err := jurisdictions.GetByID(ctx, id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load jurisdiction"})
		}
		if j == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "jurisdiction not found"})
		}

		requirements, err := graph.EffectiveRequirements(ctx, id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve requirements"})
		}
		legislation, err := graph.EffectiveLegislation(ctx, id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to resolve legislation"})
		}
		linked, err := locations.ListByJurisdiction(ctx, id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load locations"})
		}
		children, err := jurisdictions.GetChildren(ctx, id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load children"})
		}
		counts, err := jurisdictions.Counts(ctx, id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load counters"})
		}

		requirementViews := make([]requirementView, 0, len(requirements))
		for _, r := range requirements {
			requirementViews = append(requirementViews, viewRequirement(r))
		}
		legislationViews := make([]legislationView, 0, len(legislation))
		for _, l := range legislation {
			legislationViews = append(legislationViews, viewLegislation(l))
		}
		locationViews := make([]locationView, 0, len(linked))
		for _, l := range linked {
			locationViews = append(locationViews, viewLocation(l))
		}
		childViews := make([]jurisdictionView, 0, len(children))
		for i := range children {
			childViews = append(childViews, viewJurisdiction(&children[i]))
		}

		return c.JSON(fiber.Map{
			"jurisdiction": viewJurisdiction(j),
			"counts":       counts,
			"requirements": requirementViews,
			"legislation":  legislationViews,
			"locations":    locationViews,
			"children":     childViews,
		})
	}
}

type createJurisdictionRequest struct {
	Level              string `json:"level"`
	City               string `json:"city"`
	State              string `json:"state"`
	County             string `json:"county"`
	ParentID           *int   `json:"parent_id"`
	InheritsFromParent bool   `json:"inherits_from_parent"`
}

// CreateJurisdictionHandler creates a jurisdiction
func CreateJurisdictionHandler(jurisdictions *store.JurisdictionStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()
		var req createJurisdictionRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}

		level := model.Level(req.Level)
		if req.Level == "" {
			level = model.LevelCity
		}

		j := &model.Jurisdiction{
			Level:              level,
			City:               req.City,
			State:              req.State,
			InheritsFromParent: req.InheritsFromParent,
		}
		if req.County != "" {
			j.County.String = req.County
			j.County.Valid = true
		}
		if req.ParentID != nil {
			j.ParentID.Int64 = int64(*req.ParentID)
			j.ParentID.Valid = true
		}

		if err := jurisdictions.Create(ctx, j); err != nil {
			return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"jurisdiction": viewJurisdiction(j)})
	}
}

// DeleteJurisdictionHandler deletes a jurisdiction, reporting how many
// children were detached
func DeleteJurisdictionHandler(jurisdictions *store.JurisdictionStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid jurisdiction id"})
		}

		j, err := jurisdictions.GetByID(ctx, id)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to load jurisdiction"})
		}
		if j == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "jurisdiction not found"})
		}

		detached, err := jurisdictions.Delete(ctx, id)
		if err != nil {
			return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
		}

		return c.JSON(fiber.Map{"deleted": id, "detached_children": detached})
	}
}
