// Package service implements the application's business operations on top
// of the store contracts: the staged card creation pipeline and the
// owner-scoped card management operations.
package service
