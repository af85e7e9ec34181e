package domain

import (
	"fmt"
	"strings"
	"time"
)

// Level is one tier of the containment tree Site > Module > Block > Floor > Apartment.
type Level string

const (
	LevelSite      Level = "site"
	LevelModule    Level = "module"
	LevelBlock     Level = "block"
	LevelFloor     Level = "floor"
	LevelApartment Level = "apartment"
)

// Parent returns the level directly above l; Site has none.
func (l Level) Parent() (Level, bool) {
	switch l {
	case LevelModule:
		return LevelSite, true
	case LevelBlock:
		return LevelModule, true
	case LevelFloor:
		return LevelBlock, true
	case LevelApartment:
		return LevelFloor, true
	default:
		return "", false
	}
}

// Site is a construction project ("obra"); the root of the hierarchy.
type Site struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// Module belongs to a Site; name unique within the site.
type Module struct {
	ID        int64     `db:"id"`
	SiteID    int64     `db:"site_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// Block belongs to a Module; name unique within the module.
type Block struct {
	ID        int64     `db:"id"`
	ModuleID  int64     `db:"module_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// Floor belongs to a Block; name unique within the block.
type Floor struct {
	ID        int64     `db:"id"`
	BlockID   int64     `db:"block_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// Apartment belongs to a Floor; name unique within the floor.
type Apartment struct {
	ID        int64     `db:"id"`
	FloorID   int64     `db:"floor_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// ApartmentPath is the chain of ancestor ids above an apartment.
type ApartmentPath struct {
	SiteID      int64
	ModuleID    int64
	BlockID     int64
	FloorID     int64
	ApartmentID int64
}

// ValidateName rejects blank node names.
func ValidateName(level Level, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%s name is required: %w", level, ErrInvalidArgument)
	}
	return nil
}
