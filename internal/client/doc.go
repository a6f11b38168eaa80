// Package client provides a typed HTTP client for the casebook-server API.
//
// # Overview
//
// Client wraps the REST endpoints exposed by casebook-server with typed
// methods that return the same record structures the server persists.
// Non-2xx responses surface as *APIError values carrying the HTTP status
// code and the server's error message, so callers can translate failures
// by status instead of matching strings.
//
// # Authentication
//
// When the server requires an API key, configure the client with the
// shared key and it is sent as a Bearer token on every request. An empty
// key sends no Authorization header, which works against servers running
// with auth disabled.
//
// # Usage
//
//	c := client.New("http://localhost:8080", "secret", 10*time.Second)
//	customer, err := c.AddTickets(ctx, "Acme Corp", []string{"PROJ-101"}, nil)
package client
