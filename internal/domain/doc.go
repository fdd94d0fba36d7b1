// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (sentiment.go, review.go, artifact.go, pipeline.go, loader.go) hold the
// shared types and the ports implemented by adapters. No implementation code beyond small
// value helpers.
package domain
