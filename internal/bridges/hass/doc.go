// Package hass connects the core to a Home Assistant instance over its
// WebSocket API.
//
// The bridge authenticates with a long-lived access token, subscribes to
// state_changed events, and primes itself with a full get_states dump so
// reconnects never assume device state survived the gap. Incoming states
// are translated to the core's per-kind device state maps and handed to
// a StateSink; outgoing commands become call_service requests with
// monotonically increasing message ids.
//
// A dropped connection is re-established with exponential backoff. The
// subscription itself is not resumable, so every reconnect re-subscribes
// and re-fetches.
package hass
