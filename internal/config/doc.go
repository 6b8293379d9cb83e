// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// A .env file in the working directory is loaded first when present, and a small
// set of KALSHI_* and TRACKER_* variables override file values. The file itself is
// optional: with no path, defaults plus environment are used.
package config
