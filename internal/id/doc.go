// Package id provides unique identifier generation utilities.
//
// This is the canonical source for ID generation across the posgraph codebase.
// It provides the formats the mock backend hands out:
//
//   - UUID: random UUID v4 for general-purpose identifiers
//   - Prefixed: "{prefix}-{uuidv7}" record ids, time-ordered within a prefix
//   - Short: 16-character hex ids where brevity matters
//   - Sequence: monotonic, zero-padded counters such as invoice numbers
package id
