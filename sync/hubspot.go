package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DefaultHubSpotEndpoint is the base URL of the HubSpot REST API.
const DefaultHubSpotEndpoint = "https://api.hubapi.com"

// maxErrorBodyLength bounds how much of a failed response body is carried in a CallError.
const maxErrorBodyLength = 512

// ErrNotFound is returned when a contact does not exist in the portal.
var ErrNotFound = errors.New("contact not found")

// CallError is a non-2xx response from the HubSpot API.
type CallError struct {
	StatusCode int
	Body       string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("hubspot api returned %d: %s", e.StatusCode, e.Body)
}

// RetryPolicy controls the bounded retry loop around each HubSpot call.
// Sleep is injectable so tests can run without real delays.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	Sleep       func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the policy used when none is configured:
// 3 attempts with exponential backoff on transport failures.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(1<<attempt) * time.Second
		},
		Sleep: SleepContext,
	}
}

// SleepContext blocks for d or until ctx is done, whichever comes first.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// HubSpotAPI wraps authenticated calls to one HubSpot portal's contact endpoints.
type HubSpotAPI struct {
	token    string
	endpoint string
	retry    RetryPolicy
}

// APIOption is a functional option for configuring a HubSpotAPI.
type APIOption func(*HubSpotAPI)

// APIWithEndpoint overrides the HubSpot API base URL (used in tests).
func APIWithEndpoint(endpoint string) APIOption {
	return func(h *HubSpotAPI) {
		h.endpoint = endpoint
	}
}

// APIWithRetryPolicy overrides the default retry policy.
func APIWithRetryPolicy(policy RetryPolicy) APIOption {
	return func(h *HubSpotAPI) {
		h.retry = policy
	}
}

func NewHubSpotAPI(token string, opts ...APIOption) *HubSpotAPI {
	result := &HubSpotAPI{
		token:    token,
		endpoint: DefaultHubSpotEndpoint,
		retry:    DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(result)
	}
	return result
}

// HubSpotAPIBuilder returns a new requests.Builder configured for this portal.
func (h *HubSpotAPI) HubSpotAPIBuilder() *requests.Builder {
	return requests.
		URL(h.endpoint).
		Client(&http.Client{Timeout: HTTPRequestTimeout}).
		Bearer(h.token)
}

// GetContact fetches a contact by id with the given property list.
// Returns ErrNotFound if the portal has no contact with that id.
func (h *HubSpotAPI) GetContact(ctx context.Context, id string, properties []string) (Record, error) {
	result, err := h.do(ctx, func(b *requests.Builder) *requests.Builder {
		return b.
			Pathf("/crm/v3/objects/contacts/%s", id).
			Param("properties", strings.Join(properties, ","))
	})
	var callErr *CallError
	if errors.As(err, &callErr) && callErr.StatusCode == http.StatusNotFound {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	return Record{data: result}, nil
}

// SearchByEmail issues an equality-filter search and returns the first match, if any.
func (h *HubSpotAPI) SearchByEmail(ctx context.Context, email string) (Record, bool, error) {
	// json.Marshal to safely escape email for interpolation into JSON body
	emailJSON, err := json.Marshal(email)
	if err != nil {
		return Record{}, false, err
	}

	result, err := h.do(ctx, func(b *requests.Builder) *requests.Builder {
		return b.
			Path("/crm/v3/objects/contacts/search").
			Post().
			BodyBytes([]byte(fmt.Sprintf(`
			{
				"filterGroups": [{
					"filters": [{
						"propertyName": "email",
						"operator": "EQ",
						"value": %s
					}]
				}]
			}
			`, emailJSON))).
			ContentType("application/json")
	})
	if err != nil {
		return Record{}, false, err
	}

	matches := result.Get("results")
	if !matches.Exists() || len(matches.Array()) == 0 {
		return Record{}, false, nil
	}
	return Record{data: matches.Array()[0]}, true, nil
}

// CreateContact creates a new contact with the given property set.
func (h *HubSpotAPI) CreateContact(ctx context.Context, properties map[string]string) (Record, error) {
	body, err := propertiesEnvelope(properties)
	if err != nil {
		return Record{}, err
	}
	result, err := h.do(ctx, func(b *requests.Builder) *requests.Builder {
		return b.
			Path("/crm/v3/objects/contacts").
			Post().
			BodyBytes([]byte(body)).
			ContentType("application/json")
	})
	if err != nil {
		return Record{}, err
	}
	return Record{data: result}, nil
}

// UpdateContact updates an existing contact by id.
func (h *HubSpotAPI) UpdateContact(ctx context.Context, id string, properties map[string]string) (Record, error) {
	body, err := propertiesEnvelope(properties)
	if err != nil {
		return Record{}, err
	}
	result, err := h.do(ctx, func(b *requests.Builder) *requests.Builder {
		return b.
			Pathf("/crm/v3/objects/contacts/%s", id).
			Patch().
			BodyBytes([]byte(body)).
			ContentType("application/json")
	})
	if err != nil {
		return Record{}, err
	}
	return Record{data: result}, nil
}

// Ping issues one lightweight read call to verify connectivity and credentials.
func (h *HubSpotAPI) Ping(ctx context.Context) error {
	_, err := h.do(ctx, func(b *requests.Builder) *requests.Builder {
		return b.
			Path("/crm/v3/objects/contacts").
			Param("limit", "1")
	})
	return err
}

// propertiesEnvelope wraps a property set in the {"properties": {...}} body
// the HubSpot create/update endpoints expect.
func propertiesEnvelope(properties map[string]string) (string, error) {
	result := `{"properties":{}}`
	var err error
	for k, v := range properties {
		result, err = sjson.Set(result, "properties."+k, v)
		if err != nil {
			return "", fmt.Errorf("failed to set property %q: %w", k, err)
		}
	}
	return result, nil
}

type apiResponse struct {
	status     int
	retryAfter time.Duration
	body       []byte
}

// do runs one logical API call through the retry loop. Rate limiting (429)
// waits the Retry-After duration and retries the same call; transport
// failures back off exponentially. Both are bounded by MaxAttempts.
// Any other non-2xx response fails immediately with a *CallError.
func (h *HubSpotAPI) do(ctx context.Context, build func(b *requests.Builder) *requests.Builder) (gjson.Result, error) {
	var lastErr error
	for attempt := 0; attempt < h.retry.MaxAttempts; attempt++ {
		var resp apiResponse
		err := build(h.HubSpotAPIBuilder()).
			AddValidator(nil).
			Handle(func(res *http.Response) error {
				resp.status = res.StatusCode
				resp.retryAfter = parseRetryAfter(res.Header.Get("Retry-After"))
				var readErr error
				resp.body, readErr = io.ReadAll(res.Body)
				return readErr
			}).
			Fetch(ctx)
		if err != nil {
			lastErr = fmt.Errorf("hubspot request failed: %w", err)
			if attempt < h.retry.MaxAttempts-1 {
				if serr := h.retry.Sleep(ctx, h.retry.Backoff(attempt)); serr != nil {
					return gjson.Result{}, serr
				}
				continue
			}
			return gjson.Result{}, lastErr
		}

		if resp.status == http.StatusTooManyRequests {
			log.Printf("Rate limited, waiting %s...", resp.retryAfter)
			lastErr = &CallError{StatusCode: resp.status, Body: truncateBody(resp.body)}
			if attempt < h.retry.MaxAttempts-1 {
				if serr := h.retry.Sleep(ctx, resp.retryAfter); serr != nil {
					return gjson.Result{}, serr
				}
				continue
			}
			return gjson.Result{}, lastErr
		}

		if resp.status < 200 || resp.status > 299 {
			return gjson.Result{}, &CallError{StatusCode: resp.status, Body: truncateBody(resp.body)}
		}

		if len(resp.body) == 0 {
			return gjson.Result{}, nil
		}
		return gjson.ParseBytes(resp.body), nil
	}
	return gjson.Result{}, lastErr
}

// parseRetryAfter reads a Retry-After header value in seconds,
// defaulting to 10s when absent or unparseable.
func parseRetryAfter(value string) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return 10 * time.Second
}

func truncateBody(body []byte) string {
	if len(body) > maxErrorBodyLength {
		return string(body[:maxErrorBodyLength])
	}
	return string(body)
}
