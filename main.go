// Public domain.

package main

import "github.com/soniakeys/specfit/internal/fitprog"

func main() {
	fitprog.Main()
}
