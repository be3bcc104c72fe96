// Package config manages user-level settings stored at ~/.archetect/config.yaml.
// It loads the file through Viper, layers ARCHETECT_* environment variables on
// top, and exposes the typed Settings the render pipeline consumes: offline
// and headless defaults, the conflict policy, the cache location, the git
// fetcher backend, always-on switches, and fallback answers.
package config
