package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Validation errors
var (
	ErrInvalidBase          = errors.New("invalid base")
	ErrInvalidEquipmentType = errors.New("invalid equipment type")
	ErrInvalidPersonnel     = errors.New("invalid personnel reference")
	ErrNotesTooLong         = errors.New("notes exceed maximum length")
	ErrQuantityTooLarge     = errors.New("quantity exceeds maximum allowed")
	ErrInvalidDate          = errors.New("invalid date")
)

// Validation constants
const (
	MaxIdentifierLength = 128
	MaxPersonnelLength  = 128
	MaxNotesLength      = 1024
	MaxQuantity         = 1_000_000_000
	DateLayout          = "2006-01-02"
)

// ValidateBase validates a base identifier.
func ValidateBase(base string) error {
	if err := validateIdentifier(base); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBase, err)
	}

	return nil
}

// ValidateEquipmentType validates an equipment type identifier.
func ValidateEquipmentType(equipmentType string) error {
	if err := validateIdentifier(equipmentType); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEquipmentType, err)
	}

	return nil
}

// '/' is reserved: it separates base and equipment type in AccountKey.String
// and in redis keys.
func validateIdentifier(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("cannot be empty")
	}

	if s != strings.TrimSpace(s) {
		return errors.New("has surrounding whitespace")
	}

	if utf8.RuneCountInString(s) > MaxIdentifierLength {
		return fmt.Errorf("exceeds %d characters", MaxIdentifierLength)
	}

	if strings.ContainsAny(s, "/\x00\n\r\t") {
		return errors.New("contains forbidden characters")
	}

	return nil
}

// ValidateQuantity validates a movement quantity.
func ValidateQuantity(quantity int64) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}

	if quantity > MaxQuantity {
		return fmt.Errorf("%w: maximum is %d", ErrQuantityTooLarge, MaxQuantity)
	}

	return nil
}

// ValidatePersonnel validates an assignment's personnel reference.
func ValidatePersonnel(personnel string) error {
	personnel = strings.TrimSpace(personnel)
	if personnel == "" {
		return ErrMissingPersonnel
	}

	if utf8.RuneCountInString(personnel) > MaxPersonnelLength {
		return fmt.Errorf("%w: exceeds %d characters", ErrInvalidPersonnel, MaxPersonnelLength)
	}

	return nil
}

// ValidateNotes validates expenditure notes.
func ValidateNotes(notes string) error {
	if utf8.RuneCountInString(notes) > MaxNotesLength {
		return fmt.Errorf("%w: limit is %d characters", ErrNotesTooLong, MaxNotesLength)
	}

	return nil
}

// ParseDate parses a movement date given as 2006-01-02 or RFC3339.
// An empty string yields the zero time.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}

	if t, err := time.Parse(DateLayout, s); err == nil {
		return t.UTC(), nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (use %s or RFC3339)", ErrInvalidDate, s, DateLayout)
	}

	return t.UTC(), nil
}

// ValidatePagination clamps a history page size.
func ValidatePagination(limit int) int {
	const MaxPageSize = 100
	const DefaultPageSize = 20

	if limit <= 0 {
		return DefaultPageSize
	}

	if limit > MaxPageSize {
		return MaxPageSize
	}

	return limit
}
