// Package httpserver provides the shared HTTP server shell for the
// coordinator and oracle services.
//
// BaseServer owns the concerns every service needs: standard middleware,
// request logging, liveness and readiness endpoints, drain/undrain control
// for load balancers, an optional metrics listener, optional pprof, and
// graceful shutdown. Services contribute their endpoints by implementing
// RouteRegistrar, so the coordinator handler and the oracle service plug
// into the same shell.
package httpserver
