package main

// version is the semantic version, overridable at build time with
// -ldflags "-X main.version=...".
var version = "0.1.0"
