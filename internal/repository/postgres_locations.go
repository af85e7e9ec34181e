package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"

	"obra-data/internal/domain"
)

// extensionTables maps each kind to the table holding its variant row.
var extensionTables = map[domain.LocationKind]string{
	domain.KindApartmentRoom:     "location_apartment_rooms",
	domain.KindApartment:         "location_apartments",
	domain.KindBlockInteriorArea: "location_block_interior_areas",
	domain.KindBlockFacade:       "location_block_facades",
	domain.KindBlockExteriorArea: "location_block_exterior_areas",
	domain.KindModuleArea:        "location_module_areas",
	domain.KindStreet:            "location_streets",
}

// extensionRow returns the columns and values of a variant's extension row,
// location_id excluded.
func extensionRow(a domain.Attachment) ([]string, []any, error) {
	switch v := a.(type) {
	case domain.ApartmentRoom:
		return []string{"apartment_id", "room_name"}, []any{v.ApartmentID, v.RoomName}, nil
	case domain.ApartmentUnit:
		return []string{"apartment_id"}, []any{v.ApartmentID}, nil
	case domain.BlockInteriorArea:
		return []string{"block_id", "area_name"}, []any{v.BlockID, v.AreaName}, nil
	case domain.BlockFacade:
		return []string{"block_id", "vertical_panel", "reference_floor"}, []any{v.BlockID, v.VerticalPanel, v.ReferenceFloor}, nil
	case domain.BlockExteriorArea:
		return []string{"block_id", "area_name"}, []any{v.BlockID, v.AreaName}, nil
	case domain.ModuleArea:
		return []string{"module_id", "area_name"}, []any{v.ModuleID, v.AreaName}, nil
	case domain.Street:
		return []string{"street_name"}, []any{v.StreetName}, nil
	}
	return nil, nil, fmt.Errorf("unsupported attachment %T: %w", a, domain.ErrInvalidVariant)
}

func insertExtensionQuery(kind domain.LocationKind, cols []string) string {
	ph := make([]string, len(cols)+1)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(`INSERT INTO %s (location_id, %s) VALUES (%s)`,
		extensionTables[kind], strings.Join(cols, ", "), strings.Join(ph, ", "))
}

// locationSelect loads a base row with every possible extension in one pass.
// Only the extension matching l.kind is non-null.
const locationSelect = `
	SELECT
		l.id, l.kind, l.display_name, l.site_id, l.created_at,
		ar.apartment_id, ar.room_name,
		ap.apartment_id,
		bi.block_id, bi.area_name,
		bf.block_id, bf.vertical_panel, bf.reference_floor,
		be.block_id, be.area_name,
		ma.module_id, ma.area_name,
		st.street_name
	FROM locations l
	LEFT JOIN location_apartment_rooms ar ON ar.location_id = l.id
	LEFT JOIN location_apartments ap ON ap.location_id = l.id
	LEFT JOIN location_block_interior_areas bi ON bi.location_id = l.id
	LEFT JOIN location_block_facades bf ON bf.location_id = l.id
	LEFT JOIN location_block_exterior_areas be ON be.location_id = l.id
	LEFT JOIN location_module_areas ma ON ma.location_id = l.id
	LEFT JOIN location_streets st ON st.location_id = l.id
`

func scanLocation(row interface{ Scan(...any) error }) (*domain.Location, error) {
	var (
		l    domain.Location
		kind string

		roomApt, aptApt                    sql.NullInt64
		roomName                           sql.NullString
		interiorBlock, facadeBlock, extBlk sql.NullInt64
		interiorName, extName              sql.NullString
		panel, refFloor                    sql.NullString
		moduleID                           sql.NullInt64
		moduleArea                         sql.NullString
		street                             sql.NullString
	)
	err := row.Scan(
		&l.ID, &kind, &l.DisplayName, &l.SiteID, &l.CreatedAt,
		&roomApt, &roomName,
		&aptApt,
		&interiorBlock, &interiorName,
		&facadeBlock, &panel, &refFloor,
		&extBlk, &extName,
		&moduleID, &moduleArea,
		&street,
	)
	if err != nil {
		return nil, err
	}
	l.Kind = domain.LocationKind(kind)

	var present bool
	switch l.Kind {
	case domain.KindApartmentRoom:
		present = roomApt.Valid
		l.Attachment = domain.ApartmentRoom{ApartmentID: roomApt.Int64, RoomName: roomName.String}
	case domain.KindApartment:
		present = aptApt.Valid
		l.Attachment = domain.ApartmentUnit{ApartmentID: aptApt.Int64}
	case domain.KindBlockInteriorArea:
		present = interiorBlock.Valid
		l.Attachment = domain.BlockInteriorArea{BlockID: interiorBlock.Int64, AreaName: interiorName.String}
	case domain.KindBlockFacade:
		present = facadeBlock.Valid
		l.Attachment = domain.BlockFacade{BlockID: facadeBlock.Int64, VerticalPanel: panel.String, ReferenceFloor: refFloor.String}
	case domain.KindBlockExteriorArea:
		present = extBlk.Valid
		l.Attachment = domain.BlockExteriorArea{BlockID: extBlk.Int64, AreaName: extName.String}
	case domain.KindModuleArea:
		present = moduleID.Valid
		l.Attachment = domain.ModuleArea{ModuleID: moduleID.Int64, AreaName: moduleArea.String}
	case domain.KindStreet:
		present = street.Valid
		l.Attachment = domain.Street{StreetName: street.String}
	default:
		return nil, fmt.Errorf("location %d has unknown kind %q: %w", l.ID, kind, domain.ErrInvalidVariant)
	}
	if !present {
		return nil, fmt.Errorf("location %d has no %s extension row: %w", l.ID, l.Kind, domain.ErrConstraintViolation)
	}
	return &l, nil
}

// PostgresLocationsRepository implements LocationsRepository.
type PostgresLocationsRepository struct {
	db       *sql.DB
	pageSize int
}

func NewPostgresLocationsRepository(db *sql.DB, pageSize int) *PostgresLocationsRepository {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &PostgresLocationsRepository{db: db, pageSize: pageSize}
}

var _ LocationsRepository = (*PostgresLocationsRepository)(nil)

func (r *PostgresLocationsRepository) CreateLocation(ctx context.Context, loc *domain.Location) (*domain.Location, error) {
	if loc == nil {
		return nil, fmt.Errorf("location is required: %w", domain.ErrInvalidArgument)
	}
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	cols, vals, err := extensionRow(loc.Attachment)
	if err != nil {
		return nil, err
	}

	out := *loc
	err = inTx(ctx, r.db, func(tx *sql.Tx) error {
		if level := loc.Kind.AnchorLevel(); level != "" {
			siteID, err := siteOf(ctx, tx, level, loc.Attachment.AnchorID())
			if err != nil {
				return err
			}
			if siteID != loc.SiteID {
				return fmt.Errorf("%s %d belongs to site %d, not site %d: %w",
					level, loc.Attachment.AnchorID(), siteID, loc.SiteID, domain.ErrCrossSiteReference)
			}
		}

		err := tx.QueryRowContext(ctx,
			`INSERT INTO locations (kind, display_name, site_id) VALUES ($1, $2, $3) RETURNING id, created_at`,
			string(loc.Kind), loc.DisplayName, loc.SiteID,
		).Scan(&out.ID, &out.CreatedAt)
		if err != nil {
			err = classify(err, opWrite)
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("site %d: %w", loc.SiteID, domain.ErrNotFound)
			}
			return fmt.Errorf("failed to insert location: %w", err)
		}

		args := append([]any{out.ID}, vals...)
		if _, err := tx.ExecContext(ctx, insertExtensionQuery(loc.Kind, cols), args...); err != nil {
			return fmt.Errorf("failed to insert %s extension: %w", loc.Kind, classify(err, opWrite))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *PostgresLocationsRepository) GetLocation(ctx context.Context, id int64) (*domain.Location, error) {
	return getLocation(ctx, r.db, id)
}

func getLocation(ctx context.Context, q querier, id int64) (*domain.Location, error) {
	l, err := scanLocation(q.QueryRowContext(ctx, locationSelect+` WHERE l.id = $1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("location %d: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return l, nil
}

func (r *PostgresLocationsRepository) ListLocationsByKind(ctx context.Context, siteID int64, kind domain.LocationKind) iter.Seq2[*domain.Location, error] {
	return func(yield func(*domain.Location, error) bool) {
		var after int64
		for {
			page, err := r.locationPage(ctx, siteID, kind, after)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, l := range page {
				if !yield(l, nil) {
					return
				}
			}
			if len(page) < r.pageSize {
				return
			}
			after = page[len(page)-1].ID
		}
	}
}

// locationPage reads the next page after id `after` (keyset pagination).
func (r *PostgresLocationsRepository) locationPage(ctx context.Context, siteID int64, kind domain.LocationKind, after int64) ([]*domain.Location, error) {
	q := locationSelect + `
		WHERE l.site_id = $1 AND l.kind = $2 AND l.id > $3
		ORDER BY l.id
		LIMIT $4
	`
	rows, err := r.db.QueryContext(ctx, q, siteID, string(kind), after, r.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	defer rows.Close()

	page := make([]*domain.Location, 0, r.pageSize)
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan location: %w", err)
		}
		page = append(page, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list locations: %w", err)
	}
	return page, nil
}

// DeleteLocation removes the extension and base rows together. Prices and
// tasks that still point at the location block the delete.
func (r *PostgresLocationsRepository) DeleteLocation(ctx context.Context, id int64) (*domain.Location, error) {
	var deleted *domain.Location
	err := inTx(ctx, r.db, func(tx *sql.Tx) error {
		var kind string
		err := tx.QueryRowContext(ctx, `SELECT kind FROM locations WHERE id = $1 FOR UPDATE`, id).Scan(&kind)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("location %d: %w", id, domain.ErrNotFound)
			}
			return fmt.Errorf("failed to lock location: %w", err)
		}
		l, err := getLocation(ctx, tx, id)
		if err != nil {
			return err
		}
		table, ok := extensionTables[l.Kind]
		if !ok {
			return fmt.Errorf("location %d has unknown kind %q: %w", id, kind, domain.ErrInvalidVariant)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE location_id = $1`, table), id); err != nil {
			return fmt.Errorf("failed to delete %s extension: %w", l.Kind, classify(err, opDelete))
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, id); err != nil {
			err = classify(err, opDelete)
			if errors.Is(err, domain.ErrConstraintViolation) {
				return fmt.Errorf("location %d is still referenced by prices or tasks: %w", id, err)
			}
			return fmt.Errorf("failed to delete location: %w", err)
		}
		deleted = l
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}
