package types

import "fmt"

// QueryClass is the routing category assigned to an incoming query
type QueryClass string

const (
	QueryClassFactual        QueryClass = "factual"
	QueryClassConversational QueryClass = "conversational"
	QueryClassAnalytical     QueryClass = "analytical"
	QueryClassMultimodal     QueryClass = "multimodal"
)

// AllQueryClasses returns all valid query classes
func AllQueryClasses() []QueryClass {
	return []QueryClass{
		QueryClassFactual,
		QueryClassConversational,
		QueryClassAnalytical,
		QueryClassMultimodal,
	}
}

// IsValid checks if the query class is valid
func (c QueryClass) IsValid() bool {
	switch c {
	case QueryClassFactual,
		QueryClassConversational,
		QueryClassAnalytical,
		QueryClassMultimodal:
		return true
	default:
		return false
	}
}

// Normalize returns the class, treating empty or unknown values as
// QueryClassFactual so routing always has a usable class.
func (c QueryClass) Normalize() QueryClass {
	if !c.IsValid() {
		return QueryClassFactual
	}
	return c
}

// String returns the string representation of the query class
func (c QueryClass) String() string {
	return string(c)
}

// ParseQueryClass parses a string into a QueryClass
func ParseQueryClass(s string) (QueryClass, error) {
	class := QueryClass(s)
	if !class.IsValid() {
		return "", fmt.Errorf("invalid query class: %s", s)
	}
	return class, nil
}
