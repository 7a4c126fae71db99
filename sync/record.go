package sync

import (
	"github.com/tidwall/gjson"
)

// Record wraps a raw HubSpot contact object and provides presence-checked
// access to its fields. Records are transient - they live only for the
// duration of the request that fetched them.
type Record struct {
	data gjson.Result
}

// ParseRecord parses a HubSpot contact object from a response body.
func ParseRecord(body []byte) Record {
	return Record{data: gjson.ParseBytes(body)}
}

func (r Record) StringForPath(path string) (string, bool) {
	result := r.data.Get(path)
	return result.String(), result.Exists() && (result.Value() != nil)
}

// ID returns the HubSpot-assigned contact id.
func (r Record) ID() string {
	return r.data.Get("id").String()
}

// Email returns the contact's email address, or "" if absent.
func (r Record) Email() string {
	email, _ := r.StringForPath("properties.email")
	return email
}

// Properties returns the contact's property set as a flat string map.
// HubSpot serialises all property values as strings; non-string scalars
// (booleans, numbers) are coerced, nulls are dropped.
func (r Record) Properties() map[string]string {
	result := make(map[string]string)
	props := r.data.Get("properties")
	if !props.Exists() {
		return result
	}
	props.ForEach(func(key, value gjson.Result) bool {
		if value.Type == gjson.Null {
			return true
		}
		result[key.String()] = value.String()
		return true
	})
	return result
}
