package sync

import "time"

// HTTPRequestTimeout is the default timeout for all HTTP requests to the HubSpot API.
const HTTPRequestTimeout = 30 * time.Second
