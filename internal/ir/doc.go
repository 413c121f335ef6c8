// Package ir provides the canonical value layer used for hashing and
// content-addressed identity.
//
// ir imports nothing internal. Values are restricted to strings, integers,
// booleans, arrays and objects:
//   - NO floats (decimal quantities travel as strings)
//   - NO null
//   - object keys serialize in RFC 8785 order (UTF-16 code units)
package ir
