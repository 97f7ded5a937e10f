// Package config loads and validates sealpost server configuration.
//
// Configuration is written in CUE. The file is unified with an in-source
// schema that supplies defaults and constraints, so an invalid or
// incomplete file fails at load time with a position-carrying error
// instead of surfacing later as a bad runtime value.
package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// schema constrains the configuration file. Fields carry defaults, so an
// empty file is a valid configuration for a local engine.
const schema = `
{
	// Path to the SQLite world state. Required for the run command.
	database: string | *"sealpost.db"

	// HTTP listen address for the API server.
	listen: string | *"127.0.0.1:8440"

	// Per-identity ceiling on mutating operations. 0 disables.
	mutationQuota: int & >=0 | *100000

	// Per-blob size ceiling in bytes. 0 disables.
	maxPayloadBytes: int & >=0 | *65536
}
`

// Config is the validated server configuration.
type Config struct {
	Database        string `json:"database"`
	Listen          string `json:"listen"`
	MutationQuota   int    `json:"mutationQuota"`
	MaxPayloadBytes int    `json:"maxPayloadBytes"`
}

// Default returns the configuration an empty file would produce.
func Default() Config {
	return Config{
		Database:        "sealpost.db",
		Listen:          "127.0.0.1:8440",
		MutationQuota:   100000,
		MaxPayloadBytes: 65536,
	}
}

// Load reads a CUE configuration file, unifies it with the schema, and
// decodes the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(string(data), path)
}

// Parse validates configuration source against the schema. Type
// mismatches and constraint violations are load errors. filename is used
// in error positions only.
func Parse(src, filename string) (Config, error) {
	ctx := cuecontext.New()

	schemaVal := ctx.CompileString(schema, cue.Filename("sealpost-config-schema"))
	if err := schemaVal.Err(); err != nil {
		return Config{}, fmt.Errorf("internal config schema invalid: %w", err)
	}

	fileVal := ctx.CompileString(src, cue.Filename(filename))
	if err := fileVal.Err(); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	unified := schemaVal.Unify(fileVal)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}
