package httpapi

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"obra-data/internal/domain"
	"obra-data/internal/service"
)

// JSON shapes of the domain types. Unset optional columns render as null.

func nullStr(s sql.NullString) any {
	if !s.Valid {
		return nil
	}
	return s.String
}

func nullID(i sql.NullInt64) any {
	if !i.Valid {
		return nil
	}
	return i.Int64
}

func nullDate(t sql.NullTime) any {
	if !t.Valid {
		return nil
	}
	return t.Time.Format(domain.DateLayout)
}

func nullDec(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal.String()
}

func nodeToJSON(id int64, parentKey string, parentID int64, name string, createdAt time.Time) map[string]any {
	m := map[string]any{
		"id":         id,
		"name":       name,
		"created_at": createdAt,
	}
	if parentKey != "" {
		m[parentKey] = parentID
	}
	return m
}

func siteToJSON(s *domain.Site) map[string]any {
	return nodeToJSON(s.ID, "", 0, s.Name, s.CreatedAt)
}

func moduleToJSON(m *domain.Module) map[string]any {
	return nodeToJSON(m.ID, "site_id", m.SiteID, m.Name, m.CreatedAt)
}

func blockToJSON(b *domain.Block) map[string]any {
	return nodeToJSON(b.ID, "module_id", b.ModuleID, b.Name, b.CreatedAt)
}

func floorToJSON(f *domain.Floor) map[string]any {
	return nodeToJSON(f.ID, "block_id", f.BlockID, f.Name, f.CreatedAt)
}

func apartmentToJSON(a *domain.Apartment) map[string]any {
	return nodeToJSON(a.ID, "floor_id", a.FloorID, a.Name, a.CreatedAt)
}

func apartmentPathToJSON(p *domain.ApartmentPath) map[string]any {
	return map[string]any{
		"site_id":      p.SiteID,
		"module_id":    p.ModuleID,
		"block_id":     p.BlockID,
		"floor_id":     p.FloorID,
		"apartment_id": p.ApartmentID,
	}
}

func responsibleToJSON(r *domain.Responsible) map[string]any {
	return map[string]any{
		"id":             r.ID,
		"name":           r.Name,
		"registration":   nullDec(r.Registration),
		"role":           nullStr(r.Role),
		"admission_date": nullDate(r.AdmissionDate),
		"status":         nullStr(r.Status),
		"salary_tier":    nullDec(r.SalaryTier),
		"site_id":        nullID(r.SiteID),
	}
}

func taskTypeToJSON(t *domain.TaskType) map[string]any {
	return map[string]any{
		"id":         t.ID,
		"name":       t.Name,
		"role":       nullStr(t.Role),
		"created_at": t.CreatedAt,
	}
}

func priceToJSON(p *domain.Price) map[string]any {
	return map[string]any{
		"id":           p.ID,
		"task_type_id": p.TaskTypeID,
		"location_id":  p.LocationID,
		"amount":       p.Amount.StringFixed(2),
		"unit":         nullStr(p.Unit),
		"valid_from":   p.ValidFrom.Format(domain.DateLayout),
		"valid_to":     nullDate(p.ValidTo),
		"created_at":   p.CreatedAt,
	}
}

func priceViewToJSON(v service.PriceView) map[string]any {
	m := priceToJSON(v.Price)
	m["state"] = v.State
	return m
}

func taskToJSON(t *domain.Task) map[string]any {
	return map[string]any{
		"id":           t.ID,
		"name":         t.Name,
		"start_date":   nullDate(t.StartDate),
		"end_date":     nullDate(t.EndDate),
		"location_id":  nullID(t.LocationID),
		"task_type_id": nullID(t.TaskTypeID),
		"price_id":     nullID(t.PriceID),
		"created_at":   t.CreatedAt,
	}
}

func assignmentToJSON(a domain.Assignment) map[string]any {
	return map[string]any{
		"task_id":        a.TaskID,
		"responsible_id": a.ResponsibleID,
		"percentage":     a.Percentage.StringFixed(2),
		"is_primary":     a.IsPrimary,
	}
}

func taskDetailToJSON(d *domain.TaskDetail) map[string]any {
	m := taskToJSON(&d.Task)
	if d.Location != nil {
		m["location"] = d.Location
	}
	if d.TaskType != nil {
		m["task_type"] = taskTypeToJSON(d.TaskType)
	}
	if d.Price != nil {
		m["price"] = priceToJSON(d.Price)
	}
	as := make([]any, 0, len(d.Assignments))
	for _, a := range d.Assignments {
		as = append(as, assignmentToJSON(a))
	}
	m["assignments"] = as
	m["allocation"] = d.Allocation
	return m
}

func allocationToJSON(res *service.AllocationResult) map[string]any {
	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return map[string]any{
		"task_id":       res.Status.TaskID,
		"total":         res.Status.Total.StringFixed(2),
		"complete":      res.Status.Complete,
		"primary_count": res.Status.PrimaryCount,
		"warnings":      warnings,
	}
}
