// Package deps locates the external tools quenc drives and reports on
// their availability.
package deps
