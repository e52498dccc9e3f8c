// Package config holds the validated, normalized build configuration and the
// decoding of configuration documents (TOML, YAML, JSON) into it.
//
// A raw document is decoded into RawConfig, which keeps the loosely typed
// shapes users write (entry as a string or table, loader chain elements as
// strings, tables or "loader?key=value" queries). Normalize turns it into a
// Config whose paths are absolute, whose regular expressions and filename
// templates are compiled and whose loader options are decoded into one typed
// struct per loader kind. Any violation is reported as a *ConfigError naming
// the offending field.
package config
