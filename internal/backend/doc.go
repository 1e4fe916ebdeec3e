// Package backend provides the query clients for the external monitoring
// services: a Prometheus-compatible metrics backend, a Loki-compatible log
// backend, and an Ollama language-model backend. Clients are stateless,
// safe for concurrent use, and normalize failures into a small sentinel
// error taxonomy; retry policy belongs to callers.
package backend
