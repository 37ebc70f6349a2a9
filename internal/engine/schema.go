package engine

import (
	"context"
	"strings"
)

// Row status values. LIVE rows are provisional and may be replaced by a
// later fetch of the same bucket; FINAL rows are permanent.
const (
	StatusLive  = "LIVE"
	StatusFinal = "FINAL"
)

// Schema maps logical fields to 0-based column indexes, resolved once per
// operation from the live header row. A field not present in the layout
// has index -1.
type Schema struct {
	Date           int
	Publisher      int
	Campaign       int
	Target         int
	Payout         int
	CompletedCalls int
	PaidCalls      int
	Status         int
	Hour           int
	Width          int
}

// schemaLayout describes which optional columns a sheet carries.
type schemaLayout struct {
	includeTarget     bool
	includeCallCounts bool
	hourly            bool
}

// expectedHeader returns the canonical column order for a layout. This is
// also the positional fallback when a sheet has no usable header.
func expectedHeader(layout schemaLayout) []string {
	header := []string{"Date", "Publisher", "Campaign"}
	if layout.includeTarget {
		header = append(header, "Target")
	}
	header = append(header, "Payout")
	if layout.includeCallCounts {
		header = append(header, "Completed Calls", "Paid Calls")
	}
	header = append(header, "Status")
	if layout.hourly {
		header = append(header, "Hour")
	}
	return header
}

// resolveSchema locates each logical field by case-insensitive name lookup
// against the header. Fields missing from the header fall back to their
// position in the canonical column order, provided the header does not
// claim that position for something else.
func resolveSchema(header []string, layout schemaLayout) Schema {
	expected := expectedHeader(layout)

	find := func(name string, fallback int) int {
		for i, col := range header {
			if strings.EqualFold(strings.TrimSpace(col), name) {
				return i
			}
		}
		// Positional fallback: only when the header is absent or too
		// short to have named this position at all.
		if fallback < len(expected) && fallback >= len(header) {
			return fallback
		}
		return -1
	}

	fallbacks := make(map[string]int, len(expected))
	for i, name := range expected {
		fallbacks[name] = i
	}

	s := Schema{
		Date:           find("Date", fallbacks["Date"]),
		Publisher:      find("Publisher", fallbacks["Publisher"]),
		Campaign:       find("Campaign", fallbacks["Campaign"]),
		Target:         -1,
		Payout:         find("Payout", fallbacks["Payout"]),
		CompletedCalls: -1,
		PaidCalls:      -1,
		Status:         find("Status", fallbacks["Status"]),
		Hour:           -1,
	}
	if layout.includeTarget {
		s.Target = find("Target", fallbacks["Target"])
	}
	if layout.includeCallCounts {
		s.CompletedCalls = find("Completed Calls", fallbacks["Completed Calls"])
		s.PaidCalls = find("Paid Calls", fallbacks["Paid Calls"])
	}
	if layout.hourly {
		s.Hour = find("Hour", fallbacks["Hour"])
	}

	s.Width = len(header)
	for _, idx := range []int{s.Date, s.Publisher, s.Campaign, s.Target, s.Payout, s.CompletedCalls, s.PaidCalls, s.Status, s.Hour} {
		if idx+1 > s.Width {
			s.Width = idx + 1
		}
	}
	return s
}

// complete reports whether every field the layout requires was located.
func (s Schema) complete(layout schemaLayout) bool {
	required := []int{s.Date, s.Publisher, s.Campaign, s.Payout, s.Status}
	if layout.includeTarget {
		required = append(required, s.Target)
	}
	if layout.includeCallCounts {
		required = append(required, s.CompletedCalls, s.PaidCalls)
	}
	if layout.hourly {
		required = append(required, s.Hour)
	}
	for _, idx := range required {
		if idx < 0 {
			return false
		}
	}
	return true
}

// ensureSchema resolves the schema for the given header, migrating the
// header when it is absent or shorter than the layout needs: the expected
// names are written (preserving any existing names) and the schema is
// re-resolved. This is the explicit schema-migration step — no implicit
// index arithmetic downstream.
func ensureSchema(ctx context.Context, store RowStore, header []string, layout schemaLayout) (Schema, []string, error) {
	s := resolveSchema(header, layout)
	if s.complete(layout) && len(header) > 0 {
		return s, header, nil
	}

	expected := expectedHeader(layout)
	migrated := make([]string, len(header))
	copy(migrated, header)
	for len(migrated) < len(expected) {
		migrated = append(migrated, "")
	}
	for i, name := range expected {
		if strings.TrimSpace(migrated[i]) == "" {
			migrated[i] = name
		}
	}
	// Any expected name whose slot was taken by a foreign column gets
	// appended at the end instead.
	for _, name := range expected {
		found := false
		for _, col := range migrated {
			if strings.EqualFold(strings.TrimSpace(col), name) {
				found = true
				break
			}
		}
		if !found {
			migrated = append(migrated, name)
		}
	}

	if err := store.WriteHeader(ctx, migrated); err != nil {
		return Schema{}, nil, err
	}
	return resolveSchema(migrated, layout), migrated, nil
}
