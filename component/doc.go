// Package component defines the lifecycle interface shared by the parts of
// the pixelflow serve process and a registry that starts them in order and
// stops them in reverse.
package component
