// Package scan walks directory trees for media files, counting as it
// goes so callers can watch a scan advance.
package scan
