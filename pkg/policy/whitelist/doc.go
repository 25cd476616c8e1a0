// Package whitelist protects high-value entities from destructive actions.
//
// Entries are addressed by entity ID; an optional entity text serves as a
// case-insensitive fallback match key. The guard itself is a pure lookup:
// which action kinds count as destructive is decided by the engine
// (pausing a keyword, or decreasing its bid).
package whitelist
