package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"obra-data/internal/domain"
)

func roomLocation() *domain.Location {
	return &domain.Location{
		Kind:        domain.KindApartmentRoom,
		DisplayName: "Apto 101 - Sala",
		SiteID:      1,
		Attachment:  domain.ApartmentRoom{ApartmentID: 5, RoomName: "Sala"},
	}
}

func TestCreateLocation_RoomInApartment(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresLocationsRepository(db, 10)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT m\.site_id FROM apartments a`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"site_id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO locations \(kind, display_name, site_id\)`).
		WithArgs("APARTMENT_ROOM", "Apto 101 - Sala", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(42, time.Now()))
	mock.ExpectExec(`INSERT INTO location_apartment_rooms \(location_id, apartment_id, room_name\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs(int64(42), int64(5), "Sala").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	loc, err := repo.CreateLocation(context.Background(), roomLocation())
	require.NoError(t, err)
	assert.EqualValues(t, 42, loc.ID)
	assert.Equal(t, domain.ApartmentRoom{ApartmentID: 5, RoomName: "Sala"}, loc.Attachment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLocation_CrossSite(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresLocationsRepository(db, 10)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT m\.site_id FROM apartments a`).
		WithArgs(int64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"site_id"}).AddRow(2))
	mock.ExpectRollback()

	_, err := repo.CreateLocation(context.Background(), roomLocation())
	assert.True(t, errors.Is(err, domain.ErrCrossSiteReference), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLocation_AnchorNotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresLocationsRepository(db, 10)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT m\.site_id FROM blocks b`).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"site_id"}))
	mock.ExpectRollback()

	_, err := repo.CreateLocation(context.Background(), &domain.Location{
		Kind: domain.KindBlockFacade, DisplayName: "Fachada", SiteID: 1,
		Attachment: domain.BlockFacade{BlockID: 3, VerticalPanel: "N", ReferenceFloor: "1"},
	})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLocation_ExtensionFailureRollsBack(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresLocationsRepository(db, 10)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT m\.site_id FROM modules m`).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"site_id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO locations`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(43, time.Now()))
	mock.ExpectExec(`INSERT INTO location_module_areas`).
		WithArgs(int64(43), int64(2), "Playground").
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.CreateLocation(context.Background(), &domain.Location{
		Kind: domain.KindModuleArea, DisplayName: "Playground", SiteID: 1,
		Attachment: domain.ModuleArea{ModuleID: 2, AreaName: "Playground"},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLocation_StreetHasNoAnchor(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresLocationsRepository(db, 10)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO locations`).
		WithArgs("STREET", "Rua A", int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(44, time.Now()))
	mock.ExpectExec(`INSERT INTO location_streets \(location_id, street_name\)`).
		WithArgs(int64(44), "Rua A").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	loc, err := repo.CreateLocation(context.Background(), &domain.Location{
		Kind: domain.KindStreet, DisplayName: "Rua A", SiteID: 1,
		Attachment: domain.Street{StreetName: "Rua A"},
	})
	require.NoError(t, err)
	assert.EqualValues(t, 44, loc.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateLocation_InvalidVariantTouchesNothing(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresLocationsRepository(db, 10)

	_, err := repo.CreateLocation(context.Background(), &domain.Location{
		Kind: domain.KindStreet, DisplayName: "x", SiteID: 1,
		Attachment: domain.ApartmentRoom{ApartmentID: 5, RoomName: "Sala"},
	})
	assert.True(t, errors.Is(err, domain.ErrInvalidVariant))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetLocation_Facade(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresLocationsRepository(db, 10)

	mock.ExpectQuery(`FROM locations l`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(locationCols).AddRow(
			locationRow(9, domain.KindBlockFacade, "Fachada Norte", 1, map[int]any{10: int64(3), 11: "N1", 12: "5"})...,
		))

	loc, err := repo.GetLocation(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, domain.KindBlockFacade, loc.Kind)
	assert.Equal(t, domain.BlockFacade{BlockID: 3, VerticalPanel: "N1", ReferenceFloor: "5"}, loc.Attachment)
}

func TestGetLocation_MissingExtension(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresLocationsRepository(db, 10)

	mock.ExpectQuery(`FROM locations l`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(locationCols).AddRow(locationRow(9, domain.KindStreet, "Rua", 1, nil)...))

	_, err := repo.GetLocation(context.Background(), 9)
	assert.True(t, errors.Is(err, domain.ErrConstraintViolation))
}

func TestGetLocation_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresLocationsRepository(db, 10)

	mock.ExpectQuery(`FROM locations l`).WithArgs(int64(9)).WillReturnRows(sqlmock.NewRows(locationCols))
	_, err := repo.GetLocation(context.Background(), 9)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func expectStreetPage(mock sqlmock.Sqlmock, after int64, pageSize int, ids ...int64) {
	rows := sqlmock.NewRows(locationCols)
	for _, id := range ids {
		rows.AddRow(locationRow(id, domain.KindStreet, "Rua", 1, map[int]any{17: "Rua"})...)
	}
	mock.ExpectQuery(`WHERE l\.site_id = \$1 AND l\.kind = \$2 AND l\.id > \$3`).
		WithArgs(int64(1), "STREET", after, pageSize).
		WillReturnRows(rows)
}

func TestListLocationsByKind_Pages(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresLocationsRepository(db, 2)

	expectStreetPage(mock, 0, 2, 1, 2)
	expectStreetPage(mock, 2, 2, 5)

	var ids []int64
	for loc, err := range repo.ListLocationsByKind(context.Background(), 1, domain.KindStreet) {
		require.NoError(t, err)
		ids = append(ids, loc.ID)
	}
	assert.Equal(t, []int64{1, 2, 5}, ids)

	// a second range starts over
	expectStreetPage(mock, 0, 2, 1, 2)
	for loc, err := range repo.ListLocationsByKind(context.Background(), 1, domain.KindStreet) {
		require.NoError(t, err)
		assert.EqualValues(t, 1, loc.ID)
		break
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListLocationsByKind_Error(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresLocationsRepository(db, 2)

	mock.ExpectQuery(`FROM locations l`).WillReturnError(errors.New("timeout"))

	var gotErr error
	for _, err := range repo.ListLocationsByKind(context.Background(), 1, domain.KindStreet) {
		gotErr = err
	}
	require.Error(t, gotErr)
}

func TestDeleteLocation_StillReferenced(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresLocationsRepository(db, 10)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT kind FROM locations WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows([]string{"kind"}).AddRow("STREET"))
	mock.ExpectQuery(`FROM locations l`).
		WithArgs(int64(9)).
		WillReturnRows(sqlmock.NewRows(locationCols).AddRow(locationRow(9, domain.KindStreet, "Rua", 1, map[int]any{17: "Rua"})...))
	mock.ExpectExec(`DELETE FROM location_streets WHERE location_id = \$1`).
		WithArgs(int64(9)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM locations WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnError(pqErr(pgForeignKeyViolation, "prices_location_id_fkey"))
	mock.ExpectRollback()

	_, err := repo.DeleteLocation(context.Background(), 9)
	assert.True(t, errors.Is(err, domain.ErrConstraintViolation), "got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteLocation_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostgresLocationsRepository(db, 10)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT kind FROM locations`).WithArgs(int64(9)).WillReturnRows(sqlmock.NewRows([]string{"kind"}))
	mock.ExpectRollback()

	_, err := repo.DeleteLocation(context.Background(), 9)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
