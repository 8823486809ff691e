// Package server provides HTTP routing, middleware and the REST and websocket surface of `glance serve`.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] added first runs outermost.
//
// [BasicRouter] keeps a method table per path on top of [http.ServeMux]. A known path hit with the wrong method
// gets a JSON 405 with an Allow header, an unknown path gets a JSON 404, and HEAD is answered by the GET handler.
//
// # Routes
//
//	POST /v1/cards             raw Update bytes, X-Glance-User / X-Glance-Forwarded headers, 202 {"accepted": n}
//	GET  /v1/state             JSON StateView
//	GET  /v1/routes            JSON list of "METHOD path"
//	POST /v1/user              {"user_id": n}
//	POST /v1/privacy           {"enabled": b}
//	POST /v1/producer/changed
//	POST /v1/time/changed
//	POST /v1/reload
//	GET  /v1/stream            websocket, one StreamEvent per notification
//	GET  /debug/dump           text dump
//	GET  /metrics              Prometheus exposition
//
// Lifecycle endpoints wait for the controller to apply the change before they answer, so a following GET sees it.
//
// # Middleware
//
// [RequestLogger] assigns a uuid request id, [Recover] turns panics into 500s and [RateLimit] guards ingestion
// with a token bucket from golang.org/x/time/rate.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
// [StreamHandler] is one.
package server
