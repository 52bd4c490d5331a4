// Package registry holds the tools a generation may call.
//
// A Registry is built once per process from a fixed list of tools and is
// read-only afterwards, so one instance can be shared by every concurrent run.
// Each tool declares its parameters as a name to type-string map
// ("string", "int", "float", "bool", "[string]", suffix "?" for optional);
// arguments are checked against that declaration before the tool runs.
package registry
