package repository

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"obra-data/internal/domain"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func pqErr(code, constraint string) *pq.Error {
	return &pq.Error{Code: pq.ErrorCode(code), Constraint: constraint, Message: "constraint " + constraint}
}

func day(s string) time.Time {
	d, err := domain.ParseDay(s)
	if err != nil {
		panic(err)
	}
	return d
}

var (
	nodeCols     = []string{"id", "parent_id", "name", "created_at"}
	priceCols    = []string{"id", "task_type_id", "location_id", "amount", "unit", "valid_from", "valid_to", "created_at"}
	taskCols     = []string{"id", "name", "start_date", "end_date", "location_id", "task_type_id", "price_id", "created_at"}
	assignCols   = []string{"task_id", "responsible_id", "percentage", "is_primary"}
	locationCols = []string{
		"id", "kind", "display_name", "site_id", "created_at",
		"ar_apartment_id", "room_name",
		"ap_apartment_id",
		"bi_block_id", "bi_area_name",
		"bf_block_id", "vertical_panel", "reference_floor",
		"be_block_id", "be_area_name",
		"module_id", "ma_area_name",
		"street_name",
	}
)

// locationRow fills the 18 joined columns; ext holds the values of the
// extension columns starting at offset 5.
func locationRow(id int64, kind domain.LocationKind, name string, siteID int64, ext map[int]any) []driver.Value {
	row := make([]driver.Value, len(locationCols))
	row[0], row[1], row[2], row[3], row[4] = id, string(kind), name, siteID, time.Now()
	for i, v := range ext {
		row[i] = v
	}
	return row
}
