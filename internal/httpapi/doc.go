// Package httpapi serves the project-scoped REST API.
//
// Routes are registered with method-qualified patterns on a ServeMux; every
// project route passes through the authentication middleware, which scopes
// the caller to the projectId path value. Handlers translate JSON in and out
// and delegate to the registry, session router, and delivery pipeline, with
// one shared mapping from domain errors to HTTP statuses.
package httpapi
