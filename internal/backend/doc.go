// Package backend provides the client for the hosted backend service.
//
// # Overview
//
// The backend package is the single gateway to the hosted platform: row
// queries and mutations over the REST endpoint, password authentication,
// and the realtime change feed over a websocket channel. Every other
// package talks to the backend through this client.
//
// # Client
//
// The Client is created once at startup with the project URL and the
// publishable API key, and shared across the process:
//
//	client := backend.New(cfg.Backend.URL, cfg.Backend.APIKey, logger)
//	client.SetAccessToken(session.AccessToken)
//
// # Queries
//
// Row operations use PostgREST-style query building:
//
//	var rows []Contract
//	err := client.Select(ctx, "contrataciones", backend.Query{
//		Columns: "id, estado, plan:plan_id(nombre_comercial, precio)",
//		Filters: []backend.Filter{backend.Eq("usuario_id", userID)},
//		OrderBy: "fecha_contratacion",
//		Descending: true,
//	}, &rows)
//
// Supported filters are equality, inequality, and membership in a set.
// A membership filter over an empty set never issues a request; the
// query resolves to an empty result instead.
//
// # Realtime
//
// SubscribeInserts opens a long-lived channel subscription delivering
// insert events for one table:
//
//	sub, err := client.SubscribeInserts(ctx, "mensajes_chat", "usuario_id=neq."+userID)
//	for ev := range sub.Events() { ... }
//	sub.Close()
//
// There is no automatic reconnect: when the underlying connection drops
// the event channel is closed and the caller decides what to do.
//
// # Errors
//
// Authentication gaps surface as ErrNotAuthenticated. Query and mutation
// failures surface as *QueryError carrying the backend's message; no
// operation is retried automatically.
package backend
