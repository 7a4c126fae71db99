package sync

import (
	"errors"

	"github.com/tidwall/gjson"
)

// Subscription types hubsync reacts to. Everything else is ignored.
const (
	SubscriptionContactCreation = "contact.creation"
	SubscriptionPropertyChange  = "contact.propertyChange"
	SubscriptionFormSubmitted   = "form.submitted"
)

// Event is one webhook notification unit. HubSpot delivers an array of
// these per request, but single objects are also accepted.
type Event struct {
	SubscriptionType string
	ObjectID         string
	PropertyName     string
	PropertyValue    string
	FormID           string
}

// Recognized reports whether this event type triggers a sync.
func (e Event) Recognized() bool {
	switch e.SubscriptionType {
	case SubscriptionContactCreation, SubscriptionPropertyChange, SubscriptionFormSubmitted:
		return true
	}
	return false
}

// ParseEvents parses a webhook request body as either a single event
// object or an array, normalised to a slice. Object ids arrive as JSON
// numbers on the wire and are coerced to strings.
func ParseEvents(body []byte) ([]Event, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid webhook payload")
	}
	root := gjson.ParseBytes(body)

	var raw []gjson.Result
	switch {
	case root.IsArray():
		raw = root.Array()
	case root.IsObject():
		raw = []gjson.Result{root}
	default:
		return nil, errors.New("webhook payload must be an object or an array")
	}

	result := make([]Event, 0, len(raw))
	for _, r := range raw {
		result = append(result, Event{
			SubscriptionType: r.Get("subscriptionType").String(),
			ObjectID:         r.Get("objectId").String(),
			PropertyName:     r.Get("propertyName").String(),
			PropertyValue:    r.Get("propertyValue").String(),
			FormID:           r.Get("formId").String(),
		})
	}
	return result, nil
}
