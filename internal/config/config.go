// Package config loads an optional TOML file that supplies values
// for agorad's CLI flags. cmd/agorad layers it under the flags: a flag
// whose default is empty keeps a command-line value and takes the
// file's value only when left empty; a flag with a non-empty default
// takes the file's value whenever the file sets it, even when the flag
// was also given on the command line.
package config

import (
	"github.com/BurntSushi/toml"
)

// File is the on-disk shape of an agorad.toml config file. Every
// field mirrors one of cmd/agorad's flags.
type File struct {
	Transport struct {
		URL      string `toml:"url"`
		User     string `toml:"user"`
		Password string `toml:"password"`
	} `toml:"transport"`

	Storage struct {
		Backend string `toml:"backend"`
		Root    string `toml:"root"`
		Driver  string `toml:"driver"`
		DSN     string `toml:"dsn"`
	} `toml:"storage"`

	Cache struct {
		RedisAddr string `toml:"redis_addr"`
	} `toml:"cache"`

	Plugins struct {
		Root          string `toml:"root"`
		WorkspaceRoot string `toml:"workspace_root"`
	} `toml:"plugins"`

	Workers  int    `toml:"workers"`
	LogLevel string `toml:"log_level"`
	DiagAddr string `toml:"diag_addr"`
}

// Load parses path into a File. A missing path is the caller's
// choice to make (callers should only call Load when a --config flag
// was actually given), so every error here is surfaced.
func Load(path string) (File, error) {
	var f File
	_, err := toml.DecodeFile(path, &f)
	return f, err
}
