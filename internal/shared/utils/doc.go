// Package utils holds small helpers shared across packages.
package utils
