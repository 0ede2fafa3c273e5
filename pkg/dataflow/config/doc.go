/*
Package config provides nested, key-path addressed configuration for
dataflow pipelines and node constructors.

# Overview

A Config wraps a nested map[string]any. Values are addressed by key paths
given either as separate elements or in dotted notation; the two forms are
equivalent:

	cfg := config.New(map[string]any{
	    "source": map[string]any{
	        "frequency": "B",
	        "window":    map[string]any{"start": "2000-01-03"},
	    },
	})

	cfg.Lookup("source", "window", "start") // "2000-01-03", true
	cfg.Lookup("source.window.start")       // same value
	cfg.String("source.frequency", "T")     // "B"

A Config is immutable: New and Raw deep-copy, and With returns a modified
copy.

# Required Keys

Require fails with ErrMissingKey when a path does not resolve:

	if _, err := cfg.Require("model", "n_components"); err != nil {
	    return err // missing config key: model.n_components
	}

# Typed Decoding

Decode turns a flat keyword mapping into a tagged struct with
mapstructure, rejecting unknown keys, then checks `validate` tags with
go-playground/validator:

	type pcaConfig struct {
	    NComponents int `mapstructure:"n_components" validate:"required,gt=0"`
	}
	var pc pcaConfig
	err := config.Decode(kwargs, &pc)

# File Loading

	cfg, err := config.FromFile("pipeline.yaml")
	cfg, err = config.FromYAML(yamlBytes)
	cfg, err = config.FromJSON(jsonBytes)

# Thread Safety

Config is safe for concurrent read access.
*/
package config
