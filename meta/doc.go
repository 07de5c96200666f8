// Package meta implements the metadata layer of the native backend.
//
// This package contains:
//   - Class metadata (holder types) and the type universe
//   - Field descriptors with lazy declared-type resolution
//   - The per-class reflection mirror cache
//   - The annotation-presence probe over VM metadata memory
//   - CBOR metadata snapshots for offline inspection and persisted-code
//     validation
package meta
