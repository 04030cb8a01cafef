// Package intutils provides utilities for working with ints
package intutils

// Prod returns the product of a list of ints, which is 1 for an empty
// list
func Prod(ints ...int) int {
	prod := 1
	for _, val := range ints {
		prod *= val
	}
	return prod
}
