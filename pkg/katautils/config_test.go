// Copyright (c) 2018 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0
//

package katautils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sampleConfig struct {
	Name     string `toml:"name"`
	Retries  int    `toml:"retries"`
	Interval string `toml:"interval"`
}

func TestLoadTomlMissingPath(t *testing.T) {
	assert := assert.New(t)

	var cfg sampleConfig
	assert.Error(LoadToml("", &cfg))
}

func TestLoadTomlMissingFile(t *testing.T) {
	assert := assert.New(t)

	var cfg sampleConfig
	assert.Error(LoadToml(filepath.Join(t.TempDir(), "does-not-exist.toml"), &cfg))
}

func TestLoadTomlRoundtrip(t *testing.T) {
	assert := assert.New(t)

	path := filepath.Join(t.TempDir(), "cfg.toml")
	contents := "name = \"guest\"\nretries = 5\ninterval = \"50ms\"\n"
	assert.NoError(os.WriteFile(path, []byte(contents), 0o644))

	var cfg sampleConfig
	assert.NoError(LoadToml(path, &cfg))
	assert.Equal("guest", cfg.Name)
	assert.Equal(5, cfg.Retries)
	assert.Equal("50ms", cfg.Interval)
}
