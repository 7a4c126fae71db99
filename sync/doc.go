package sync

import (
	"bytes"
	"encoding/csv"
	"slices"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
)

// MappingDocRow represents a single property in the mapping documentation.
type MappingDocRow struct {
	Label               string // Display label derived from the property name
	SourceProperty      string // HubSpot internal name in the source portal
	DestinationProperty string // Name written to the destination portal ("" if skipped)
	Disposition         string // "synced", "renamed" or "skipped"
	Transform           string // Configured value transform, if any
	Safe                bool   // Whether the property is on the safe fallback list
}

// MappingDocumentation contains the full property mapping documentation.
type MappingDocumentation struct {
	Rows []MappingDocRow
}

// GenerateMappingDocumentation renders a mapping table as documentation
// rows, sorted by source property name for deterministic output.
func GenerateMappingDocumentation(m Mapping) MappingDocumentation {
	doc := MappingDocumentation{Rows: []MappingDocRow{}}

	properties := make([]string, len(m.Properties))
	copy(properties, m.Properties)
	sort.Strings(properties)

	for _, source := range properties {
		row := MappingDocRow{
			Label:          propertyLabel(source),
			SourceProperty: source,
		}
		switch {
		case slices.Contains(m.Skip, source):
			row.Disposition = "skipped"
		default:
			row.DestinationProperty = source
			row.Disposition = "synced"
			if renamed, exists := m.Renames[source]; exists {
				row.DestinationProperty = renamed
				row.Disposition = "renamed"
			}
			row.Transform = m.Transforms[row.DestinationProperty]
			row.Safe = slices.Contains(m.Safe, row.DestinationProperty)
		}
		doc.Rows = append(doc.Rows, row)
	}

	return doc
}

// propertyLabel derives a display label from a HubSpot internal property
// name, e.g. "military_rank" -> "Military Rank".
func propertyLabel(name string) string {
	var words []string
	for _, part := range strings.Split(strings.Trim(name, "_"), "_") {
		if part == "" {
			continue
		}
		words = append(words, strcase.ToCamel(part))
	}
	return strings.Join(words, " ")
}

// FormatCSV formats the mapping documentation as CSV.
func (d MappingDocumentation) FormatCSV() (string, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Label", "Source Property", "Destination Property", "Disposition", "Transform", "Safe Fallback"}
	if err := writer.Write(headers); err != nil {
		return "", err
	}

	for _, row := range d.Rows {
		safeMark := ""
		if row.Safe {
			safeMark = "yes"
		}
		record := []string{row.Label, row.SourceProperty, row.DestinationProperty, row.Disposition, row.Transform, safeMark}
		if err := writer.Write(record); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}

	return buf.String(), nil
}
