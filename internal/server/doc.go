// Package server provides HTTP routing and middleware for serving the backend and catalog
// wire formats in-process.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("PATCH /anime/status/{id}").
//
// # Middleware
//
//   - [Logging] : debug request log through charmbracelet/log
//   - [CountRequests] : atomic request counter, used to assert how many calls reached a server
//   - [RequireBearer] : 401 for requests without an accepted bearer token
//
// # Current Usage
//
// The fakes in internal/testing are assembled from these pieces and served with httptest,
// giving the service, tracker and CLI tests a backend that behaves like the real one.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
