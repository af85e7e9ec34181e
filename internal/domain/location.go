package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// LocationKind is the discriminator of a Location; fixed at creation.
type LocationKind string

const (
	KindApartmentRoom     LocationKind = "APARTMENT_ROOM"
	KindApartment         LocationKind = "APARTMENT"
	KindBlockInteriorArea LocationKind = "BLOCK_INTERIOR_AREA"
	KindBlockFacade       LocationKind = "BLOCK_FACADE"
	KindBlockExteriorArea LocationKind = "BLOCK_EXTERIOR_AREA"
	KindModuleArea        LocationKind = "MODULE_AREA"
	KindStreet            LocationKind = "STREET"
)

// LocationKinds lists every kind in declaration order.
var LocationKinds = []LocationKind{
	KindApartmentRoom,
	KindApartment,
	KindBlockInteriorArea,
	KindBlockFacade,
	KindBlockExteriorArea,
	KindModuleArea,
	KindStreet,
}

func (k LocationKind) Valid() bool {
	for _, v := range LocationKinds {
		if k == v {
			return true
		}
	}
	return false
}

// AnchorLevel is the hierarchy level a kind attaches to; "" for Street.
func (k LocationKind) AnchorLevel() Level {
	switch k {
	case KindApartmentRoom, KindApartment:
		return LevelApartment
	case KindBlockInteriorArea, KindBlockFacade, KindBlockExteriorArea:
		return LevelBlock
	case KindModuleArea:
		return LevelModule
	default:
		return ""
	}
}

// ParseLocationKind accepts the stored discriminator value, case-insensitively.
func ParseLocationKind(s string) (LocationKind, error) {
	k := LocationKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("unknown location kind %q: %w", s, ErrInvalidVariant)
	}
	return k, nil
}

// Column limits of the variant tables.
const (
	MaxDisplayNameLen    = 350
	MaxAreaNameLen       = 150
	MaxVerticalPanelLen  = 100
	MaxReferenceFloorLen = 50
	MaxStreetNameLen     = 255
)

// Attachment is the closed set of Location variants. Each variant carries its
// own fields and, except Street, the id of the hierarchy node it hangs from.
type Attachment interface {
	Kind() LocationKind
	// AnchorID is the id of the node at Kind().AnchorLevel(); 0 for Street.
	AnchorID() int64
	validate() error
}

// ApartmentRoom is a room inside an apartment.
type ApartmentRoom struct {
	ApartmentID int64  `json:"apartment_id"`
	RoomName    string `json:"room_name"`
}

// ApartmentUnit references a whole apartment.
type ApartmentUnit struct {
	ApartmentID int64 `json:"apartment_id"`
}

type BlockInteriorArea struct {
	BlockID  int64  `json:"block_id"`
	AreaName string `json:"area_name"`
}

type BlockFacade struct {
	BlockID        int64  `json:"block_id"`
	VerticalPanel  string `json:"vertical_panel"`
	ReferenceFloor string `json:"reference_floor"`
}

type BlockExteriorArea struct {
	BlockID  int64  `json:"block_id"`
	AreaName string `json:"area_name"`
}

type ModuleArea struct {
	ModuleID int64  `json:"module_id"`
	AreaName string `json:"area_name"`
}

// Street has no structural attachment.
type Street struct {
	StreetName string `json:"street_name"`
}

func (ApartmentRoom) Kind() LocationKind     { return KindApartmentRoom }
func (ApartmentUnit) Kind() LocationKind     { return KindApartment }
func (BlockInteriorArea) Kind() LocationKind { return KindBlockInteriorArea }
func (BlockFacade) Kind() LocationKind       { return KindBlockFacade }
func (BlockExteriorArea) Kind() LocationKind { return KindBlockExteriorArea }
func (ModuleArea) Kind() LocationKind        { return KindModuleArea }
func (Street) Kind() LocationKind            { return KindStreet }

func (a ApartmentRoom) AnchorID() int64     { return a.ApartmentID }
func (a ApartmentUnit) AnchorID() int64     { return a.ApartmentID }
func (a BlockInteriorArea) AnchorID() int64 { return a.BlockID }
func (a BlockFacade) AnchorID() int64       { return a.BlockID }
func (a BlockExteriorArea) AnchorID() int64 { return a.BlockID }
func (a ModuleArea) AnchorID() int64        { return a.ModuleID }
func (Street) AnchorID() int64              { return 0 }

func (a ApartmentRoom) validate() error {
	return firstErr(requireID("apartment_id", a.ApartmentID), requireText("room_name", a.RoomName, MaxAreaNameLen))
}

func (a ApartmentUnit) validate() error {
	return requireID("apartment_id", a.ApartmentID)
}

func (a BlockInteriorArea) validate() error {
	return firstErr(requireID("block_id", a.BlockID), requireText("area_name", a.AreaName, MaxAreaNameLen))
}

func (a BlockFacade) validate() error {
	return firstErr(
		requireID("block_id", a.BlockID),
		requireText("vertical_panel", a.VerticalPanel, MaxVerticalPanelLen),
		requireText("reference_floor", a.ReferenceFloor, MaxReferenceFloorLen),
	)
}

func (a BlockExteriorArea) validate() error {
	return firstErr(requireID("block_id", a.BlockID), requireText("area_name", a.AreaName, MaxAreaNameLen))
}

func (a ModuleArea) validate() error {
	return firstErr(requireID("module_id", a.ModuleID), requireText("area_name", a.AreaName, MaxAreaNameLen))
}

func (a Street) validate() error {
	return requireText("street_name", a.StreetName, MaxStreetNameLen)
}

func requireID(field string, id int64) error {
	if id <= 0 {
		return fmt.Errorf("%s is required: %w", field, ErrInvalidVariant)
	}
	return nil
}

func requireText(field, v string, max int) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s is required: %w", field, ErrInvalidVariant)
	}
	if utf8.RuneCountInString(v) > max {
		return fmt.Errorf("%s longer than %d characters: %w", field, max, ErrInvalidVariant)
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// ValidateAttachment checks that a is the variant declared by kind and that
// its fields are populated.
func ValidateAttachment(kind LocationKind, a Attachment) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown location kind %q: %w", kind, ErrInvalidVariant)
	}
	if a == nil {
		return fmt.Errorf("kind %s requires an attachment: %w", kind, ErrInvalidVariant)
	}
	if a.Kind() != kind {
		return fmt.Errorf("attachment of kind %s does not match declared kind %s: %w", a.Kind(), kind, ErrInvalidVariant)
	}
	return a.validate()
}

// DecodeAttachment decodes a JSON payload into the variant named by kind.
// Unknown fields are rejected, so a payload shaped for another kind fails.
// An empty payload is only accepted where the variant would still validate.
func DecodeAttachment(kind LocationKind, raw json.RawMessage) (Attachment, error) {
	var target Attachment
	switch kind {
	case KindApartmentRoom:
		target = &ApartmentRoom{}
	case KindApartment:
		target = &ApartmentUnit{}
	case KindBlockInteriorArea:
		target = &BlockInteriorArea{}
	case KindBlockFacade:
		target = &BlockFacade{}
	case KindBlockExteriorArea:
		target = &BlockExteriorArea{}
	case KindModuleArea:
		target = &ModuleArea{}
	case KindStreet:
		target = &Street{}
	default:
		return nil, fmt.Errorf("unknown location kind %q: %w", kind, ErrInvalidVariant)
	}

	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(target); err != nil {
			return nil, fmt.Errorf("decode %s attachment: %v: %w", kind, err, ErrInvalidVariant)
		}
	}

	a := deref(target)
	if err := ValidateAttachment(kind, a); err != nil {
		return nil, err
	}
	return a, nil
}

func deref(a Attachment) Attachment {
	switch v := a.(type) {
	case *ApartmentRoom:
		return *v
	case *ApartmentUnit:
		return *v
	case *BlockInteriorArea:
		return *v
	case *BlockFacade:
		return *v
	case *BlockExteriorArea:
		return *v
	case *ModuleArea:
		return *v
	case *Street:
		return *v
	}
	return a
}

// Location is the base row together with its resolved variant.
type Location struct {
	ID          int64
	Kind        LocationKind
	DisplayName string
	SiteID      int64
	CreatedAt   time.Time
	Attachment  Attachment
}

// Validate checks the base fields and the kind/attachment agreement.
func (l *Location) Validate() error {
	if strings.TrimSpace(l.DisplayName) == "" {
		return fmt.Errorf("display_name is required: %w", ErrInvalidArgument)
	}
	if utf8.RuneCountInString(l.DisplayName) > MaxDisplayNameLen {
		return fmt.Errorf("display_name longer than %d characters: %w", MaxDisplayNameLen, ErrInvalidArgument)
	}
	if l.SiteID <= 0 {
		return fmt.Errorf("site_id is required: %w", ErrInvalidArgument)
	}
	return ValidateAttachment(l.Kind, l.Attachment)
}

// MarshalJSON emits the tag and the variant payload side by side.
func (l Location) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID          int64        `json:"id"`
		Kind        LocationKind `json:"kind"`
		DisplayName string       `json:"display_name"`
		SiteID      int64        `json:"site_id"`
		CreatedAt   time.Time    `json:"created_at"`
		Attachment  Attachment   `json:"attachment"`
	}{l.ID, l.Kind, l.DisplayName, l.SiteID, l.CreatedAt, l.Attachment})
}
