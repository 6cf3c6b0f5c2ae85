package main

// Version is the semantic version of the service
const Version = "1.0.0"

// Gitref is set by the build via -ldflags
var Gitref string
