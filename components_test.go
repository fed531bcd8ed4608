package strata_test

import "github.com/strata-ecs/strata"

// Common self-describing component types used across the test suite.
type Position struct {
	strata.Base[Position]
	X, Y float64
}

type Velocity struct {
	strata.Base[Velocity]
	X, Y float64
}

type Health struct {
	strata.Base[Health]
	Current, Max int
}

type Name struct {
	strata.Base[Name]
	Value string
}

// RawThing does not embed strata.Base, so it never implicitly registers.
type RawThing struct {
	Value int
}
