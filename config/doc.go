// Package config loads harness configuration from YAML files and the
// environment. A harness config describes logging, observability, and one
// block per service type listing the connections the harness may establish.
package config
