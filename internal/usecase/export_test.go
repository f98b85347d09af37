//go:build !integration

package usecase

import "io"

// SetTokenSource swaps the generator's entropy source and returns a restore func.
func SetTokenSource(r io.Reader) func() {
	prev := tokenSource
	tokenSource = r
	return func() { tokenSource = prev }
}

var GenerateToken = generateToken
