// Package configs provides the embedded configuration template for amanlaunch.
//
// The template is embedded at build time so `amanlaunch config init` works
// from source builds and binary releases alike. It must stay loadable by
// internal/config: keys it sets override the defaults in NewConfig.
package configs

import _ "embed"

// UserConfigTemplate is the commented template written by
// `amanlaunch config init` to ~/.config/amanlaunch/config.yaml.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
