// Package manager owns the single active model slot. It is structured into
// small files by concern:
//
//   - manager.go: core Manager type, catalog delegation, simple getters.
//   - config.go: ManagerConfig and package defaults; NewWithConfig applies defaults.
//   - types.go: slot state.
//   - errors.go: error types and IsX helpers used by the HTTP layer.
//   - load.go: Load and Reload.
//   - unload.go: Unload and lease draining.
//   - lease.go: inference leases on the loaded pipeline.
//   - admission.go: single in-flight generation admission.
//   - generate.go: generation defaults, validation and execution.
//   - events.go, eventpub_memory.go: lifecycle events.
//   - metrics.go: Prometheus collectors.
//   - status_report.go: Status reporting.
//
// Transitions (load, unload, reload) are serialized by a weight-1
// semaphore. The loader itself runs with a context detached from the
// caller, so a load cannot be abandoned half way.
package manager
