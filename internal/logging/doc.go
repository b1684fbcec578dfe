// Package logging centralizes slog construction and attribute helpers.
// It offers a console handler for interactive use and a JSON handler
// for machine consumption, both driven by configuration.
package logging
