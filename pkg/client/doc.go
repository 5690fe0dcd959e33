// Package client implements engine.Applier against the monitoring service REST API.
//
// Resources are matched by tracking id: Apply lists the kind's collection
// filtered by tracking_id and then creates, updates or leaves the resource
// alone. Failures are returned as *engine.Error so the retry policy can
// decide what to re-attempt:
//
//	429            throttled
//	409            conflict
//	408, 5xx       transient
//	other 4xx      permanent
//	network error  transient
//	deadline       timeout
//
// Requests share a token bucket (golang.org/x/time/rate) when a rate limit is set.
package client
