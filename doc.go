// Package modreg provides a runtime module registry.
//
// It offers:
// - module registration by type or by instance, keyed by capability type
// - dependency resolution with pluggable duplicate and resolver policies
// - cycle tolerance through reserve-before-instantiate
// - full rollback of failed registrations
// - lock-free lookups while registrations are serialized
// - reverse-order shutdown and dependency graph export
package modreg
