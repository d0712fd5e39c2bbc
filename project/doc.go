// Package project reads and writes graph documents on disk.
//
// The encoding follows the file extension: ".yaml" and ".yml" are YAML,
// everything else is JSON. Documents are checked for structural problems
// before they reach a graph, and Fingerprint gives a stable content hash
// used to tell project revisions apart.
package project
