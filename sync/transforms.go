package sync

import (
	"fmt"
	"log"
	"strings"

	"github.com/biter777/countries"
	"github.com/ttacon/libphonenumber"
)

// transform is a parsed value transform in "function:arg" form,
// e.g. "phone:US" or "countryName".
type transform struct {
	function string
	arg      string
}

func parseTransform(value string) (transform, error) {
	parts := strings.SplitN(value, ":", 2)
	result := transform{function: parts[0]}
	if len(parts) > 1 {
		result.arg = parts[1]
	}
	switch result.function {
	case "phone", "countryName", "toLower", "toUpper":
		return result, nil
	default:
		return result, fmt.Errorf("unknown transform %q", result.function)
	}
}

// ApplyTransform applies a configured transform to a property value.
// Transforms are deterministic and never fail a sync - a value that cannot
// be transformed passes through unchanged.
func ApplyTransform(spec string, value string) string {
	t, err := parseTransform(spec)
	if err != nil {
		log.Printf("Warning: %v (value passed through)", err)
		return value
	}
	switch t.function {
	case "phone":
		return transformPhone(value, t.arg)
	case "countryName":
		return transformCountryName(value)
	case "toLower":
		return strings.ToLower(value)
	case "toUpper":
		return strings.ToUpper(value)
	}
	return value
}

// transformPhone normalises a phone number to E.164 using the given default
// region (e.g. "US"). Numbers that fail to parse pass through unchanged.
func transformPhone(number string, region string) string {
	num, err := libphonenumber.Parse(number, region)
	if err != nil {
		log.Printf("Warning: failed to parse phone number %q with region %q: %v", number, region, err)
		return number
	}
	return libphonenumber.Format(num, libphonenumber.E164)
}

// transformCountryName expands a country code or name to the full country
// name. Matches on Alpha-2 / Alpha-3 / Name; unknown values pass through.
func transformCountryName(value string) string {
	c := countries.ByName(value)
	if c == countries.Unknown {
		return value
	}
	return c.String()
}
