// Package config loads, defaults and validates the gate's YAML
// configuration. Environment references of the form ${VAR} are expanded
// at load time so secrets stay out of the file.
package config
