// Package aggregate reduces per-instance status documents and health values into
// one composite signal.
//
// Both reductions poll every instance on every call; nothing is cached. The two
// precedence policies differ on purpose and must not be unified:
//
//	status: {OK} -> OK, OK plus anything -> WARNING, OK absent -> ERROR
//	health: {Ok} -> Ok, Ok plus anything -> Warning, Ok absent and Error present -> Error, otherwise Warning
package aggregate
