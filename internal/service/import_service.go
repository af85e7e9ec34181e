package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"obra-data/internal/domain"
	"obra-data/internal/importer"
	"obra-data/internal/repository"
)

// ImportService loads and dumps a site's hierarchy as a spreadsheet.
type ImportService interface {
	ImportHierarchy(ctx context.Context, siteID int64, r io.Reader) (*ImportReport, error)
	ExportHierarchy(ctx context.Context, siteID int64) ([]byte, error)
	HierarchyTemplate() ([]byte, error)
}

// ImportReport counts what an import did. Rows already present are reused,
// so importing the same sheet twice creates nothing the second time.
type ImportReport struct {
	Rows       int                 `json:"rows"`
	Modules    int                 `json:"modules_created"`
	Blocks     int                 `json:"blocks_created"`
	Floors     int                 `json:"floors_created"`
	Apartments int                 `json:"apartments_created"`
	Reused     int                 `json:"reused"`
	Skipped    []importer.RowError `json:"skipped"`
}

func (r *ImportReport) created(level domain.Level) {
	switch level {
	case domain.LevelModule:
		r.Modules++
	case domain.LevelBlock:
		r.Blocks++
	case domain.LevelFloor:
		r.Floors++
	case domain.LevelApartment:
		r.Apartments++
	}
}

type importService struct {
	repo   repository.HierarchyRepository
	logger *zap.Logger
}

func NewImportService(repo repository.HierarchyRepository, logger *zap.Logger) ImportService {
	return &importService{repo: repo, logger: logger}
}

var importLevels = []domain.Level{domain.LevelModule, domain.LevelBlock, domain.LevelFloor, domain.LevelApartment}

// nodeKey names one child of a parent node.
type nodeKey struct {
	level    domain.Level
	parentID int64
	name     string
}

// nodeIndex caches the children of each parent seen so far.
type nodeIndex struct {
	repo   repository.HierarchyRepository
	ids    map[nodeKey]int64
	loaded map[nodeKey]bool // keyed with an empty name
}

func (ix *nodeIndex) load(ctx context.Context, level domain.Level, parentID int64) error {
	mark := nodeKey{level: level, parentID: parentID}
	if ix.loaded[mark] {
		return nil
	}
	put := func(id int64, name string) {
		ix.ids[nodeKey{level: level, parentID: parentID, name: name}] = id
	}
	switch level {
	case domain.LevelModule:
		ms, err := ix.repo.ListModules(ctx, parentID)
		if err != nil {
			return err
		}
		for _, m := range ms {
			put(m.ID, m.Name)
		}
	case domain.LevelBlock:
		bs, err := ix.repo.ListBlocks(ctx, parentID)
		if err != nil {
			return err
		}
		for _, b := range bs {
			put(b.ID, b.Name)
		}
	case domain.LevelFloor:
		fs, err := ix.repo.ListFloors(ctx, parentID)
		if err != nil {
			return err
		}
		for _, f := range fs {
			put(f.ID, f.Name)
		}
	case domain.LevelApartment:
		as, err := ix.repo.ListApartments(ctx, parentID)
		if err != nil {
			return err
		}
		for _, a := range as {
			put(a.ID, a.Name)
		}
	}
	ix.loaded[mark] = true
	return nil
}

func (ix *nodeIndex) create(ctx context.Context, level domain.Level, parentID int64, name string) (int64, error) {
	switch level {
	case domain.LevelModule:
		m, err := ix.repo.CreateModule(ctx, parentID, name)
		if err != nil {
			return 0, err
		}
		return m.ID, nil
	case domain.LevelBlock:
		b, err := ix.repo.CreateBlock(ctx, parentID, name)
		if err != nil {
			return 0, err
		}
		return b.ID, nil
	case domain.LevelFloor:
		f, err := ix.repo.CreateFloor(ctx, parentID, name)
		if err != nil {
			return 0, err
		}
		return f.ID, nil
	case domain.LevelApartment:
		a, err := ix.repo.CreateApartment(ctx, parentID, name)
		if err != nil {
			return 0, err
		}
		return a.ID, nil
	}
	return 0, fmt.Errorf("cannot import level %q: %w", level, domain.ErrInvalidArgument)
}

// ensure returns the id of the named child, creating it when missing.
func (ix *nodeIndex) ensure(ctx context.Context, level domain.Level, parentID int64, name string) (id int64, created bool, err error) {
	key := nodeKey{level: level, parentID: parentID, name: name}
	if id, ok := ix.ids[key]; ok {
		return id, false, nil
	}
	if err := ix.load(ctx, level, parentID); err != nil {
		return 0, false, err
	}
	if id, ok := ix.ids[key]; ok {
		return id, false, nil
	}
	id, err = ix.create(ctx, level, parentID, name)
	if errors.Is(err, domain.ErrDuplicateName) {
		// Created concurrently; pick it up.
		delete(ix.loaded, nodeKey{level: level, parentID: parentID})
		if err := ix.load(ctx, level, parentID); err != nil {
			return 0, false, err
		}
		if id, ok := ix.ids[key]; ok {
			return id, false, nil
		}
	}
	if err != nil {
		return 0, false, err
	}
	ix.ids[key] = id
	return id, true, nil
}

// ImportHierarchy creates the levels named by each row under siteID. Rows are
// applied one by one; a row rejected by validation is reported and skipped,
// a store failure aborts the import with the rows before it kept.
func (s *importService) ImportHierarchy(ctx context.Context, siteID int64, r io.Reader) (*ImportReport, error) {
	if err := requireID("site_id", siteID); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetSite(ctx, siteID); err != nil {
		logFailure(s.logger, "ImportHierarchy failed", err, zap.Int64("site_id", siteID))
		return nil, err
	}

	rows, skipped, err := importer.ReadHierarchy(r)
	if err != nil {
		s.logger.Warn("ImportHierarchy rejected sheet", zap.Int64("site_id", siteID), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	}

	report := &ImportReport{Rows: len(rows) + len(skipped), Skipped: skipped}
	ix := &nodeIndex{repo: s.repo, ids: map[nodeKey]int64{}, loaded: map[nodeKey]bool{}}

nextRow:
	for _, row := range rows {
		parentID := siteID
		for i, name := range row.Names() {
			level := importLevels[i]
			if err := domain.ValidateName(level, name); err != nil {
				report.Skipped = append(report.Skipped, importer.RowError{Line: row.Line, Reason: err.Error()})
				continue nextRow
			}
			id, created, err := ix.ensure(ctx, level, parentID, name)
			if err != nil {
				if domain.ErrorKind(err) != "" {
					report.Skipped = append(report.Skipped, importer.RowError{Line: row.Line, Reason: err.Error()})
					continue nextRow
				}
				s.logger.Error("ImportHierarchy failed",
					zap.Int64("site_id", siteID),
					zap.Int("line", row.Line),
					zap.Error(err),
				)
				return report, fmt.Errorf("import stopped at line %d: %w", row.Line, err)
			}
			if created {
				report.created(level)
			} else {
				report.Reused++
			}
			parentID = id
		}
	}

	s.logger.Info("hierarchy imported",
		zap.Int64("site_id", siteID),
		zap.Int("rows", report.Rows),
		zap.Int("modules", report.Modules),
		zap.Int("blocks", report.Blocks),
		zap.Int("floors", report.Floors),
		zap.Int("apartments", report.Apartments),
		zap.Int("skipped", len(report.Skipped)),
	)
	return report, nil
}

// ExportHierarchy writes one row per leaf of the site tree in import layout.
func (s *importService) ExportHierarchy(ctx context.Context, siteID int64) ([]byte, error) {
	if err := requireID("site_id", siteID); err != nil {
		return nil, err
	}
	rows, err := s.hierarchyRows(ctx, siteID)
	if err != nil {
		logFailure(s.logger, "ExportHierarchy failed", err, zap.Int64("site_id", siteID))
		return nil, err
	}
	out, err := importer.GenerateHierarchyExport(rows)
	if err != nil {
		s.logger.Error("ExportHierarchy failed", zap.Int64("site_id", siteID), zap.Error(err))
		return nil, err
	}
	return out, nil
}

func (s *importService) hierarchyRows(ctx context.Context, siteID int64) ([]importer.HierarchyRow, error) {
	if _, err := s.repo.GetSite(ctx, siteID); err != nil {
		return nil, err
	}
	var rows []importer.HierarchyRow
	add := func(r importer.HierarchyRow) {
		r.Line = len(rows) + 2
		rows = append(rows, r)
	}

	modules, err := s.repo.ListModules(ctx, siteID)
	if err != nil {
		return nil, err
	}
	for _, m := range modules {
		blocks, err := s.repo.ListBlocks(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			add(importer.HierarchyRow{Module: m.Name})
		}
		for _, b := range blocks {
			floors, err := s.repo.ListFloors(ctx, b.ID)
			if err != nil {
				return nil, err
			}
			if len(floors) == 0 {
				add(importer.HierarchyRow{Module: m.Name, Block: b.Name})
			}
			for _, f := range floors {
				apartments, err := s.repo.ListApartments(ctx, f.ID)
				if err != nil {
					return nil, err
				}
				if len(apartments) == 0 {
					add(importer.HierarchyRow{Module: m.Name, Block: b.Name, Floor: f.Name})
				}
				for _, a := range apartments {
					add(importer.HierarchyRow{Module: m.Name, Block: b.Name, Floor: f.Name, Apartment: a.Name})
				}
			}
		}
	}
	return rows, nil
}

func (s *importService) HierarchyTemplate() ([]byte, error) {
	out, err := importer.GenerateHierarchyTemplate()
	if err != nil {
		s.logger.Error("HierarchyTemplate failed", zap.Error(err))
		return nil, err
	}
	return out, nil
}
