package core

import (
	"errors"
	"fmt"
	"strings"
)

const (
	Milk Category = iota
	Water
	Maid
	Cook
	Driver
	Gardener
)

// Category is the closed set of household service categories.
// The zero value is Milk; decode untrusted strings with ParseCategory.
type Category int

var ErrUnknownCategory = errors.New("unknown category")

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{Milk, Water, Maid, Cook, Driver, Gardener}
}

// String returns the storage/wire name of the category.
func (c Category) String() string {
	switch c {
	case Milk:
		return "MILK"
	case Water:
		return "WATER"
	case Maid:
		return "MAID"
	case Cook:
		return "COOK"
	case Driver:
		return "DRIVER"
	case Gardener:
		return "GARDENER"
	default:
		return fmt.Sprintf("CATEGORY(%d)", int(c))
	}
}

// ParseCategory decodes a storage/wire name into a Category.
// Unknown names return ErrUnknownCategory, never a silent zero value.
func ParseCategory(s string) (Category, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MILK":
		return Milk, nil
	case "WATER":
		return Water, nil
	case "MAID":
		return Maid, nil
	case "COOK":
		return Cook, nil
	case "DRIVER":
		return Driver, nil
	case "GARDENER":
		return Gardener, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
}

// DisplayName returns the human-facing label.
func (c Category) DisplayName() string {
	switch c {
	case Milk:
		return "Milk"
	case Water:
		return "Water"
	case Maid:
		return "Maid"
	case Cook:
		return "Cook"
	case Driver:
		return "Driver"
	case Gardener:
		return "Gardener"
	default:
		return c.String()
	}
}

// HasQuantity reports whether entries of this category carry a measured quantity.
func (c Category) HasQuantity() bool {
	return c == Milk || c == Water
}

// QuantityUnit returns the unit label for quantity-bearing categories.
func (c Category) QuantityUnit() string {
	switch c {
	case Milk:
		return "Liters"
	case Water:
		return "Cans"
	default:
		return ""
	}
}

// CountLabel returns the label used when counting visits for a category.
func (c Category) CountLabel() string {
	switch c {
	case Maid, Cook, Driver:
		return "Days"
	case Gardener:
		return "Visits"
	default:
		return ""
	}
}
