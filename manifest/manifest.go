// Copyright 2023 Google Inc. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package manifest reads the package section of a Cargo.toml file.
package manifest

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// A Package holds the manifest fields the generator needs.
type Package struct {
	Name    string
	Version string
	Edition string
}

var validEditions = []string{"2015", "2018", "2021", "2024"}

// Read loads <dir>/Cargo.toml and returns its package metadata. Name and
// version are required; a missing edition means the 2015 edition.
func Read(dir string) (*Package, error) {
	path := filepath.Join(dir, "Cargo.toml")

	var manifest struct {
		Package struct {
			Name    string `toml:"name"`
			Version string `toml:"version"`
			Edition string `toml:"edition"`
		} `toml:"package"`
	}
	if _, err := toml.DecodeFile(path, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	pkg := &Package{
		Name:    manifest.Package.Name,
		Version: manifest.Package.Version,
		Edition: manifest.Package.Edition,
	}
	if pkg.Name == "" {
		return nil, fmt.Errorf("%s: missing package.name", path)
	}
	if pkg.Version == "" {
		return nil, fmt.Errorf("%s: missing package.version", path)
	}
	if pkg.Edition == "" {
		pkg.Edition = "2015"
	}
	valid := false
	for _, e := range validEditions {
		if pkg.Edition == e {
			valid = true
		}
	}
	if !valid {
		return nil, fmt.Errorf("%s: unsupported edition %q", path, pkg.Edition)
	}
	return pkg, nil
}
