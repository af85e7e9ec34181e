package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"obra-data/internal/domain"
)

// levelSpec describes how one hierarchy level is stored.
type levelSpec struct {
	level     domain.Level
	table     string
	parentCol string // empty for sites
	parent    domain.Level
}

var levelSpecs = map[domain.Level]levelSpec{
	domain.LevelSite:      {level: domain.LevelSite, table: "sites"},
	domain.LevelModule:    {level: domain.LevelModule, table: "modules", parentCol: "site_id", parent: domain.LevelSite},
	domain.LevelBlock:     {level: domain.LevelBlock, table: "blocks", parentCol: "module_id", parent: domain.LevelModule},
	domain.LevelFloor:     {level: domain.LevelFloor, table: "floors", parentCol: "block_id", parent: domain.LevelBlock},
	domain.LevelApartment: {level: domain.LevelApartment, table: "apartments", parentCol: "floor_id", parent: domain.LevelFloor},
}

func (s levelSpec) returning() string {
	parent := "0::bigint"
	if s.parentCol != "" {
		parent = s.parentCol
	}
	return "id, " + parent + ", name, created_at"
}

type nodeRow struct {
	ID        int64
	ParentID  int64
	Name      string
	CreatedAt time.Time
}

func scanNode(row interface{ Scan(...any) error }) (nodeRow, error) {
	var n nodeRow
	err := row.Scan(&n.ID, &n.ParentID, &n.Name, &n.CreatedAt)
	return n, err
}

// PostgresHierarchyRepository implements HierarchyRepository on Postgres.
type PostgresHierarchyRepository struct {
	db *sql.DB
}

func NewPostgresHierarchyRepository(db *sql.DB) *PostgresHierarchyRepository {
	return &PostgresHierarchyRepository{db: db}
}

var _ HierarchyRepository = (*PostgresHierarchyRepository)(nil)

func (r *PostgresHierarchyRepository) createNode(ctx context.Context, s levelSpec, parentID int64, name string) (nodeRow, error) {
	var row *sql.Row
	if s.parentCol == "" {
		q := fmt.Sprintf(`INSERT INTO %s (name) VALUES ($1) RETURNING %s`, s.table, s.returning())
		row = r.db.QueryRowContext(ctx, q, name)
	} else {
		q := fmt.Sprintf(`INSERT INTO %s (%s, name) VALUES ($1, $2) RETURNING %s`, s.table, s.parentCol, s.returning())
		row = r.db.QueryRowContext(ctx, q, parentID, name)
	}
	n, err := scanNode(row)
	if err != nil {
		err = classify(err, opWrite)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nodeRow{}, fmt.Errorf("%s %d: %w", s.parent, parentID, domain.ErrNotFound)
		case errors.Is(err, domain.ErrDuplicateName):
			return nodeRow{}, fmt.Errorf("%s %q already exists under %s %d: %w", s.level, name, s.parent, parentID, domain.ErrDuplicateName)
		}
		return nodeRow{}, fmt.Errorf("failed to create %s: %w", s.level, err)
	}
	return n, nil
}

func (r *PostgresHierarchyRepository) getNode(ctx context.Context, s levelSpec, id int64) (nodeRow, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, s.returning(), s.table)
	n, err := scanNode(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nodeRow{}, fmt.Errorf("%s %d: %w", s.level, id, domain.ErrNotFound)
		}
		return nodeRow{}, fmt.Errorf("failed to get %s: %w", s.level, err)
	}
	return n, nil
}

func (r *PostgresHierarchyRepository) listNodes(ctx context.Context, s levelSpec, parentID int64) ([]nodeRow, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if s.parentCol == "" {
		q := fmt.Sprintf(`SELECT %s FROM %s ORDER BY id`, s.returning(), s.table)
		rows, err = r.db.QueryContext(ctx, q)
	} else {
		q := fmt.Sprintf(`SELECT %s FROM %s WHERE %s = $1 ORDER BY name, id`, s.returning(), s.table, s.parentCol)
		rows, err = r.db.QueryContext(ctx, q, parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.table, err)
	}
	defer rows.Close()

	var out []nodeRow
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", s.level, err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.table, err)
	}
	return out, nil
}

// renameNode relies on the (parent, name) unique key; a row never collides
// with itself, so renaming to the current name succeeds.
func (r *PostgresHierarchyRepository) renameNode(ctx context.Context, s levelSpec, id int64, name string) (nodeRow, error) {
	q := fmt.Sprintf(`UPDATE %s SET name = $2 WHERE id = $1 RETURNING %s`, s.table, s.returning())
	n, err := scanNode(r.db.QueryRowContext(ctx, q, id, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nodeRow{}, fmt.Errorf("%s %d: %w", s.level, id, domain.ErrNotFound)
		}
		err = classify(err, opWrite)
		if errors.Is(err, domain.ErrDuplicateName) {
			return nodeRow{}, fmt.Errorf("%s %q already exists: %w", s.level, name, domain.ErrDuplicateName)
		}
		return nodeRow{}, fmt.Errorf("failed to rename %s: %w", s.level, err)
	}
	return n, nil
}

func (r *PostgresHierarchyRepository) deleteNode(ctx context.Context, s levelSpec, id int64) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		err = classify(err, opDelete)
		if errors.Is(err, domain.ErrConstraintViolation) {
			return fmt.Errorf("%s %d is still referenced: %w", s.level, id, domain.ErrConstraintViolation)
		}
		return fmt.Errorf("failed to delete %s: %w", s.level, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", s.level, err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", s.level, id, domain.ErrNotFound)
	}
	return nil
}

// Site

func toSite(n nodeRow) *domain.Site {
	return &domain.Site{ID: n.ID, Name: n.Name, CreatedAt: n.CreatedAt}
}

func (r *PostgresHierarchyRepository) CreateSite(ctx context.Context, name string) (*domain.Site, error) {
	n, err := r.createNode(ctx, levelSpecs[domain.LevelSite], 0, name)
	if err != nil {
		return nil, err
	}
	return toSite(n), nil
}

func (r *PostgresHierarchyRepository) GetSite(ctx context.Context, id int64) (*domain.Site, error) {
	n, err := r.getNode(ctx, levelSpecs[domain.LevelSite], id)
	if err != nil {
		return nil, err
	}
	return toSite(n), nil
}

func (r *PostgresHierarchyRepository) ListSites(ctx context.Context) ([]*domain.Site, error) {
	ns, err := r.listNodes(ctx, levelSpecs[domain.LevelSite], 0)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Site, 0, len(ns))
	for _, n := range ns {
		out = append(out, toSite(n))
	}
	return out, nil
}

func (r *PostgresHierarchyRepository) RenameSite(ctx context.Context, id int64, name string) (*domain.Site, error) {
	n, err := r.renameNode(ctx, levelSpecs[domain.LevelSite], id, name)
	if err != nil {
		return nil, err
	}
	return toSite(n), nil
}

func (r *PostgresHierarchyRepository) DeleteSite(ctx context.Context, id int64) error {
	return r.deleteNode(ctx, levelSpecs[domain.LevelSite], id)
}

// Module

func toModule(n nodeRow) *domain.Module {
	return &domain.Module{ID: n.ID, SiteID: n.ParentID, Name: n.Name, CreatedAt: n.CreatedAt}
}

func (r *PostgresHierarchyRepository) CreateModule(ctx context.Context, siteID int64, name string) (*domain.Module, error) {
	n, err := r.createNode(ctx, levelSpecs[domain.LevelModule], siteID, name)
	if err != nil {
		return nil, err
	}
	return toModule(n), nil
}

func (r *PostgresHierarchyRepository) GetModule(ctx context.Context, id int64) (*domain.Module, error) {
	n, err := r.getNode(ctx, levelSpecs[domain.LevelModule], id)
	if err != nil {
		return nil, err
	}
	return toModule(n), nil
}

func (r *PostgresHierarchyRepository) ListModules(ctx context.Context, siteID int64) ([]*domain.Module, error) {
	ns, err := r.listNodes(ctx, levelSpecs[domain.LevelModule], siteID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Module, 0, len(ns))
	for _, n := range ns {
		out = append(out, toModule(n))
	}
	return out, nil
}

func (r *PostgresHierarchyRepository) RenameModule(ctx context.Context, id int64, name string) (*domain.Module, error) {
	n, err := r.renameNode(ctx, levelSpecs[domain.LevelModule], id, name)
	if err != nil {
		return nil, err
	}
	return toModule(n), nil
}

func (r *PostgresHierarchyRepository) DeleteModule(ctx context.Context, id int64) error {
	return r.deleteNode(ctx, levelSpecs[domain.LevelModule], id)
}

// Block

func toBlock(n nodeRow) *domain.Block {
	return &domain.Block{ID: n.ID, ModuleID: n.ParentID, Name: n.Name, CreatedAt: n.CreatedAt}
}

func (r *PostgresHierarchyRepository) CreateBlock(ctx context.Context, moduleID int64, name string) (*domain.Block, error) {
	n, err := r.createNode(ctx, levelSpecs[domain.LevelBlock], moduleID, name)
	if err != nil {
		return nil, err
	}
	return toBlock(n), nil
}

func (r *PostgresHierarchyRepository) GetBlock(ctx context.Context, id int64) (*domain.Block, error) {
	n, err := r.getNode(ctx, levelSpecs[domain.LevelBlock], id)
	if err != nil {
		return nil, err
	}
	return toBlock(n), nil
}

func (r *PostgresHierarchyRepository) ListBlocks(ctx context.Context, moduleID int64) ([]*domain.Block, error) {
	ns, err := r.listNodes(ctx, levelSpecs[domain.LevelBlock], moduleID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Block, 0, len(ns))
	for _, n := range ns {
		out = append(out, toBlock(n))
	}
	return out, nil
}

func (r *PostgresHierarchyRepository) RenameBlock(ctx context.Context, id int64, name string) (*domain.Block, error) {
	n, err := r.renameNode(ctx, levelSpecs[domain.LevelBlock], id, name)
	if err != nil {
		return nil, err
	}
	return toBlock(n), nil
}

func (r *PostgresHierarchyRepository) DeleteBlock(ctx context.Context, id int64) error {
	return r.deleteNode(ctx, levelSpecs[domain.LevelBlock], id)
}

// Floor

func toFloor(n nodeRow) *domain.Floor {
	return &domain.Floor{ID: n.ID, BlockID: n.ParentID, Name: n.Name, CreatedAt: n.CreatedAt}
}

func (r *PostgresHierarchyRepository) CreateFloor(ctx context.Context, blockID int64, name string) (*domain.Floor, error) {
	n, err := r.createNode(ctx, levelSpecs[domain.LevelFloor], blockID, name)
	if err != nil {
		return nil, err
	}
	return toFloor(n), nil
}

func (r *PostgresHierarchyRepository) GetFloor(ctx context.Context, id int64) (*domain.Floor, error) {
	n, err := r.getNode(ctx, levelSpecs[domain.LevelFloor], id)
	if err != nil {
		return nil, err
	}
	return toFloor(n), nil
}

func (r *PostgresHierarchyRepository) ListFloors(ctx context.Context, blockID int64) ([]*domain.Floor, error) {
	ns, err := r.listNodes(ctx, levelSpecs[domain.LevelFloor], blockID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Floor, 0, len(ns))
	for _, n := range ns {
		out = append(out, toFloor(n))
	}
	return out, nil
}

func (r *PostgresHierarchyRepository) RenameFloor(ctx context.Context, id int64, name string) (*domain.Floor, error) {
	n, err := r.renameNode(ctx, levelSpecs[domain.LevelFloor], id, name)
	if err != nil {
		return nil, err
	}
	return toFloor(n), nil
}

func (r *PostgresHierarchyRepository) DeleteFloor(ctx context.Context, id int64) error {
	return r.deleteNode(ctx, levelSpecs[domain.LevelFloor], id)
}

// Apartment

func toApartment(n nodeRow) *domain.Apartment {
	return &domain.Apartment{ID: n.ID, FloorID: n.ParentID, Name: n.Name, CreatedAt: n.CreatedAt}
}

func (r *PostgresHierarchyRepository) CreateApartment(ctx context.Context, floorID int64, name string) (*domain.Apartment, error) {
	n, err := r.createNode(ctx, levelSpecs[domain.LevelApartment], floorID, name)
	if err != nil {
		return nil, err
	}
	return toApartment(n), nil
}

func (r *PostgresHierarchyRepository) GetApartment(ctx context.Context, id int64) (*domain.Apartment, error) {
	n, err := r.getNode(ctx, levelSpecs[domain.LevelApartment], id)
	if err != nil {
		return nil, err
	}
	return toApartment(n), nil
}

func (r *PostgresHierarchyRepository) ListApartments(ctx context.Context, floorID int64) ([]*domain.Apartment, error) {
	ns, err := r.listNodes(ctx, levelSpecs[domain.LevelApartment], floorID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Apartment, 0, len(ns))
	for _, n := range ns {
		out = append(out, toApartment(n))
	}
	return out, nil
}

func (r *PostgresHierarchyRepository) RenameApartment(ctx context.Context, id int64, name string) (*domain.Apartment, error) {
	n, err := r.renameNode(ctx, levelSpecs[domain.LevelApartment], id, name)
	if err != nil {
		return nil, err
	}
	return toApartment(n), nil
}

func (r *PostgresHierarchyRepository) DeleteApartment(ctx context.Context, id int64) error {
	return r.deleteNode(ctx, levelSpecs[domain.LevelApartment], id)
}

const apartmentPathQuery = `
	SELECT m.site_id, b.module_id, f.block_id, a.floor_id, a.id
	FROM apartments a
	JOIN floors f ON f.id = a.floor_id
	JOIN blocks b ON b.id = f.block_id
	JOIN modules m ON m.id = b.module_id
	WHERE a.id = $1
`

func (r *PostgresHierarchyRepository) ResolveApartmentPath(ctx context.Context, apartmentID int64) (*domain.ApartmentPath, error) {
	var p domain.ApartmentPath
	err := r.db.QueryRowContext(ctx, apartmentPathQuery, apartmentID).Scan(
		&p.SiteID, &p.ModuleID, &p.BlockID, &p.FloorID, &p.ApartmentID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("apartment %d: %w", apartmentID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to resolve apartment path: %w", err)
	}
	return &p, nil
}

func (r *PostgresHierarchyRepository) SiteOf(ctx context.Context, level domain.Level, id int64) (int64, error) {
	return siteOf(ctx, r.db, level, id)
}

// siteOfQueries walk from a node up to its site.
var siteOfQueries = map[domain.Level]string{
	domain.LevelModule: `SELECT m.site_id FROM modules m WHERE m.id = $1`,
	domain.LevelBlock: `SELECT m.site_id FROM blocks b
		JOIN modules m ON m.id = b.module_id WHERE b.id = $1`,
	domain.LevelFloor: `SELECT m.site_id FROM floors f
		JOIN blocks b ON b.id = f.block_id
		JOIN modules m ON m.id = b.module_id WHERE f.id = $1`,
	domain.LevelApartment: `SELECT m.site_id FROM apartments a
		JOIN floors f ON f.id = a.floor_id
		JOIN blocks b ON b.id = f.block_id
		JOIN modules m ON m.id = b.module_id WHERE a.id = $1`,
}

func siteOf(ctx context.Context, q querier, level domain.Level, id int64) (int64, error) {
	query, ok := siteOfQueries[level]
	if !ok {
		return 0, fmt.Errorf("no site lookup for level %q: %w", level, domain.ErrInvalidArgument)
	}
	var siteID int64
	if err := q.QueryRowContext(ctx, query, id).Scan(&siteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s %d: %w", level, id, domain.ErrNotFound)
		}
		return 0, fmt.Errorf("failed to resolve site of %s: %w", level, err)
	}
	return siteID, nil
}
