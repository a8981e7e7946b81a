//go:build !debug
// +build !debug

package server

// debug gates routes that are only served by debug builds (/debug/trace).
var debug = false
