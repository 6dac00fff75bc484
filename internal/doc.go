// Package internal contains the implementation packages for markview.
//
// The packages are organized by functional domain:
//
//   - cache: preview cache with an upgradable reader/writer lock
//   - config: configuration loading, validation, and live-reload diffing
//   - core: lifecycle controller wiring the subsystems together
//   - debounce: deferred and preemptive render submission
//   - postproc: image reference rewriting in rendered HTML
//   - registry: renderer registration and selection
//   - renderer: the built-in markup renderers
//   - server: HTTP polling API, view shell, and websocket nudges
//   - source: buffer sources, including the file-backed one
//   - worker: the coalescing render queue and dispatch loop
//
// All buffer text flows one way: a source snapshots it, the debouncer
// spaces it, the worker renders it, the cache holds it, and the server
// serves it. Packages communicate through the types package and explicit
// constructor wiring; there are no package-level singletons outside of
// renderer registration.
package internal
