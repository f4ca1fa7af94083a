// Copyright (c) 2018 Intel Corporation
// Copyright (c) 2018 HyperHQ Inc.
//
// SPDX-License-Identifier: Apache-2.0
//

package katautils

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LoadToml decodes the TOML file at path into dst, which must be a pointer
// to a struct carrying `toml:"..."` tags. It mirrors the decode step of the
// teacher's own tomlConfig loader, minus the OCI-specific validation that
// doesn't apply outside the runtime shim.
func LoadToml(path string, dst interface{}) error {
	if path == "" {
		return fmt.Errorf("config path must be specified")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %q: %w", path, err)
	}

	if _, err := toml.Decode(string(data), dst); err != nil {
		return fmt.Errorf("failed to parse config file %q: %w", path, err)
	}

	return nil
}
