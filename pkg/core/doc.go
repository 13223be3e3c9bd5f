// Package core defines the shared domain types for the modelink engine.
//
// These types flow between the workflow extractor, the candidate matcher,
// the catalog resolver, the resolution planner, and the download manager.
// The package is intentionally dependency-free so that internal packages
// can share types without import cycles.
package core
