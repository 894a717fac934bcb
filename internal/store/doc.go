// Package store defines the persistence contracts the pipeline depends on.
// Implementations live under internal/platform; the rest of the code only
// ever sees these interfaces and error values.
package store
