package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Status is the outcome of one contact sync.
type Status string

const (
	StatusCreated Status = "created"
	StatusUpdated Status = "updated"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Outcome is the structured result of syncing one contact. Produced once
// per processed event; never persisted.
type Outcome struct {
	ContactID string `json:"contact_id"`
	EventType string `json:"event_type"`
	Status    Status `json:"status"`
	Message   string `json:"message"`
}

// Syncer relays contacts from the source portal to the destination portal.
// All steps of a sync run synchronously and sequentially.
type Syncer struct {
	Mapping Mapping
	Source  *HubSpotAPI
	Dest    *HubSpotAPI
}

// SyncContact fetches contactID from the source portal, maps its property
// set and creates or updates the corresponding contact in the destination
// portal, joining on email. Failures are reported in the Outcome rather
// than returned - callers never abort a batch over one contact.
func (s Syncer) SyncContact(ctx context.Context, contactID string, eventType string) Outcome {
	result := Outcome{
		ContactID: contactID,
		EventType: eventType,
		Status:    StatusError,
	}

	contact, err := s.Source.GetContact(ctx, contactID, s.Mapping.Properties)
	if errors.Is(err, ErrNotFound) {
		result.Message = "Contact not found in source portal"
		return result
	}
	if err != nil {
		result.Message = err.Error()
		log.Printf("[%s] Error syncing contact %s: %v", eventType, contactID, err)
		return result
	}

	props := contact.Properties()
	email := props["email"]
	if email == "" {
		result.Status = StatusSkipped
		result.Message = "Contact has no email"
		return result
	}

	syncProps := s.Mapping.MapProperties(props)

	existing, found, err := s.Dest.SearchByEmail(ctx, email)
	if err != nil {
		result.Message = err.Error()
		log.Printf("[%s] Error syncing contact %s: %v", eventType, contactID, err)
		return result
	}

	if found {
		err = s.write(ctx, syncProps, func(ctx context.Context, p map[string]string) error {
			_, werr := s.Dest.UpdateContact(ctx, existing.ID(), p)
			return werr
		})
		if err != nil {
			result.Message = err.Error()
			log.Printf("[%s] Error syncing contact %s: %v", eventType, contactID, err)
			return result
		}
		result.Status = StatusUpdated
		result.Message = fmt.Sprintf("Updated contact: %s", email)
	} else {
		err = s.write(ctx, syncProps, func(ctx context.Context, p map[string]string) error {
			_, werr := s.Dest.CreateContact(ctx, p)
			return werr
		})
		if err != nil {
			result.Message = err.Error()
			log.Printf("[%s] Error syncing contact %s: %v", eventType, contactID, err)
			return result
		}
		result.Status = StatusCreated
		result.Message = fmt.Sprintf("Created contact: %s", email)
	}

	log.Printf("[%s] %s", eventType, result.Message)
	return result
}

// write issues a destination write, falling back once to the configured
// safe property subset when the portal rejects the full set. Destination
// schemas can reject unknown custom properties; the safe list is assumed
// valid everywhere. The fallback is off unless a safe list is configured.
func (s Syncer) write(ctx context.Context, properties map[string]string, writeFn func(context.Context, map[string]string) error) error {
	err := writeFn(ctx, properties)
	if err == nil || len(s.Mapping.Safe) == 0 {
		return err
	}
	var callErr *CallError
	if !errors.As(err, &callErr) {
		return err
	}
	safe := s.Mapping.SafeSubset(properties)
	if len(safe) == 0 || len(safe) == len(properties) {
		return err
	}
	log.Printf("Destination rejected full property set (%v), retrying with safe subset", callErr)
	if retryErr := writeFn(ctx, safe); retryErr != nil {
		return fmt.Errorf("safe property fallback also failed: %w (original: %v)", retryErr, err)
	}
	return nil
}
