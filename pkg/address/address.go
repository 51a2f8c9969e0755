// Package address implements the key grammar that positions form fields:
// a section key encodes (page, section) and an entity address key encodes
// (entityIndex, entitySet, propertyType). Both encodings are reversible.
package address

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/openlattice/lattice-consent/pkg/edm"
)

const separator = "__@@__"

// RepeatableIndex marks a key that belongs to a repeatable group. It is
// rewritten to the record's position (plus any index shift) at assembly
// time and must never be treated as a concrete index.
const RepeatableIndex = -1

var (
	ErrInvalidSectionKey = errors.New("invalid page section key")
	ErrInvalidAddressKey = errors.New("invalid entity address key")
)

// PageSectionKey returns the section key for (page, section).
func PageSectionKey(page, section int) string {
	return fmt.Sprintf("page%dsection%d", page, section)
}

// ParsePageSectionKey is the inverse of PageSectionKey.
func ParsePageSectionKey(key string) (page, section int, err error) {
	rest, ok := strings.CutPrefix(key, "page")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSectionKey, key)
	}
	pageStr, sectionStr, ok := strings.Cut(rest, "section")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSectionKey, key)
	}
	page, err = strconv.Atoi(pageStr)
	if err != nil || page < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSectionKey, key)
	}
	section, err = strconv.Atoi(sectionStr)
	if err != nil || section < 0 {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidSectionKey, key)
	}
	return page, section, nil
}

// EntityAddress is the parsed form of an entity address key.
type EntityAddress struct {
	Index        int
	EntitySet    edm.EntitySet
	PropertyType edm.FQN
}

// EntityAddressKey returns the field key addressing property fqn of the
// entity at index within entitySet. Index RepeatableIndex (-1) is the
// placeholder for repeatable groups.
func EntityAddressKey(index int, entitySet edm.EntitySet, fqn edm.FQN) string {
	return strconv.Itoa(index) + separator + string(entitySet) + separator + string(fqn)
}

// ParseEntityAddressKey is the inverse of EntityAddressKey.
func ParseEntityAddressKey(key string) (EntityAddress, error) {
	parts := strings.Split(key, separator)
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return EntityAddress{}, fmt.Errorf("%w: %q", ErrInvalidAddressKey, key)
	}
	index, err := strconv.Atoi(parts[0])
	if err != nil || index < RepeatableIndex {
		return EntityAddress{}, fmt.Errorf("%w: %q", ErrInvalidAddressKey, key)
	}
	return EntityAddress{
		Index:        index,
		EntitySet:    edm.EntitySet(parts[1]),
		PropertyType: edm.FQN(parts[2]),
	}, nil
}

// IsEntityAddressKey reports whether key parses as an entity address key.
func IsEntityAddressKey(key string) bool {
	_, err := ParseEntityAddressKey(key)
	return err == nil
}
