// Package config loads, normalizes, and validates screensolve configuration.
//
// It supplies defaults, expands user paths (including tilde shortcuts), reads
// TOML files, loads .env files, and honours environment fallbacks such as
// SCREENSOLVE_SOLVER_URL and GEMINI_API_KEY. The Config type centralizes every
// knob the daemon, the solve API, and the CLI need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
