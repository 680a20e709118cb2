package tree_sitter_calyx

// #cgo CFLAGS: -std=c11 -fPIC
// #include "../../src/parser.c"
import "C"

import "unsafe"

// Language returns the tree-sitter language for Calyx.
func Language() unsafe.Pointer {
	return unsafe.Pointer(C.tree_sitter_calyx())
}
