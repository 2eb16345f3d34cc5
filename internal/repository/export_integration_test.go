//go:build integration

package repository

var DuplicateApplication = (*Repository).duplicateApplication
