// Package ir provides the shared value types for hackrun.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps ir the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Hack words are int16 everywhere; display formatting never mutates them
//   - MemoryView values are copies, never aliases of live simulation memory
//   - Canonical JSON (RFC 8785 style) is the only encoding used for digests
package ir
