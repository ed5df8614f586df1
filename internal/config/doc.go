// Package config provides configuration loading for registryd.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (REGISTRYD_SERVER_PORT, REGISTRYD_LOGGING_LEVEL, ...)
//  2. YAML config file
//  3. Defaults
//
// The mirror list can only be configured through the YAML file; everything
// else can be overridden from the environment.
package config
