// Package adapter defines the vendor adapter contracts consumed by the
// orchestrator, the closed adapter error taxonomy, and the adapter
// implementations.
//
// Two adapter families exist:
//
//   - ReorderAdapter prices an item list and places an order.
//   - BookingAdapter offers appointment windows and books one.
//
// Each family has a deterministic mock (MockReorder, MockBooking) used by
// tests and local development, and a remote implementation (RemoteReorder,
// RemoteBooking) that drives a browser-automation sidecar over HTTP.
//
// Adapters report failures as *Error values carrying a Kind. Callers decide
// retryability and transport status from the Kind alone; anything that is
// not an *Error is KindUnknown.
package adapter
