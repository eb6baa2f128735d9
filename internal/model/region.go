package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// FoldKey folds a label for comparison: case-folded with whitespace
// collapsed. "  japan " and "Japan" share a key.
func FoldKey(label string) string {
	return strings.Join(strings.Fields(cases.Fold().String(label)), " ")
}

// RegionKey is the comparison key of a region label.
func RegionKey(label string) string {
	return FoldKey(label)
}
