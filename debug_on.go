//go:build debug
// +build debug

package server

var debug = true
