package domain

import (
	"fmt"
	"sort"
	"strings"
)

// AccountKey identifies one balance line: an equipment type held at a base.
type AccountKey struct {
	Base          string
	EquipmentType string
}

// NewAccountKey builds a validated AccountKey. Surrounding whitespace is trimmed.
func NewAccountKey(base, equipmentType string) (AccountKey, error) {
	key := AccountKey{
		Base:          strings.TrimSpace(base),
		EquipmentType: strings.TrimSpace(equipmentType),
	}

	if err := key.Validate(); err != nil {
		return AccountKey{}, err
	}

	return key, nil
}

// Validate checks both halves of the key.
func (k AccountKey) Validate() error {
	if err := ValidateBase(k.Base); err != nil {
		return err
	}

	return ValidateEquipmentType(k.EquipmentType)
}

// IsZero reports whether the key is unset.
func (k AccountKey) IsZero() bool {
	return k.Base == "" && k.EquipmentType == ""
}

// Less orders keys lexicographically by base, then equipment type.
// Every multi-key lock acquisition uses this order.
func (k AccountKey) Less(other AccountKey) bool {
	if k.Base != other.Base {
		return k.Base < other.Base
	}

	return k.EquipmentType < other.EquipmentType
}

func (k AccountKey) String() string {
	return fmt.Sprintf("%s/%s", k.Base, k.EquipmentType)
}

// SortAccountKeys sorts keys in place in the global lock order.
func SortAccountKeys(keys []AccountKey) {
	sort.Slice(keys, func(i, j int) bool {
		return keys[i].Less(keys[j])
	})
}
