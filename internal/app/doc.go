// Package app provides the application service layer.
//
// Composes the hearth engine with the contribution source (inventory gating), the status publisher
// and the writer lease. Sits between HTTP handlers and the engine. Depends on domain interfaces,
// not concrete adapters.
package app
