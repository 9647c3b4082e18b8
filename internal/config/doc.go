// Package config loads, normalizes, and validates Strive configuration.
//
// Configuration is read from TOML (default ~/.config/strive/config.toml or a
// project-local strive.toml), overlaid with secrets from the environment and
// optional .env files, then expanded and validated. Rating provider
// credentials are collected once at startup via DiscoverKeys so downstream
// packages only ever see an explicit list.
package config
