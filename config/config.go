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

// Package config reads the generation config file that steers cargo2bp.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config is the whole-run configuration.
type Config struct {
	// Build test crates too, with a second `cargo build --tests` pass.
	Tests bool `toml:"tests"`
	// Features to enable instead of the crate defaults.
	Features []string `toml:"features"`
	// Build the whole workspace, minus WorkspaceExcludes.
	Workspace         bool     `toml:"workspace"`
	WorkspaceExcludes []string `toml:"workspace_excludes"`
	// Set as `defaults` on every module.
	GlobalDefaults string `toml:"global_defaults"`
	// apex_available value for library modules.
	ApexAvailable []string `toml:"apex_available"`
	// logical module name => emitted module name
	ModuleNameOverrides map[string]string `toml:"module_name_overrides"`
	// Modules in this list will not be output.
	ModuleBlocklist []string `toml:"module_blocklist"`
	// Extract shared properties of a package's modules into rust_defaults.
	HoistDefaults bool `toml:"hoist_defaults"`

	Package map[string]*PackageConfig `toml:"package"`
}

// PackageConfig holds options that apply to everything in one package,
// i.e. everything associated with a particular Cargo.toml file.
type PackageConfig struct {
	DeviceSupported *bool `toml:"device_supported"` // default true
	HostSupported   *bool `toml:"host_supported"`   // default true
	ForceRlib       bool  `toml:"force_rlib"`
	// TODO: should probably be per-module instead of per-package. A
	// package can mix unit and integration tests.
	NoPresubmit bool `toml:"no_presubmit"`
	// Dependency module names to omit from generated modules.
	DepBlocklist []string `toml:"dep_blocklist"`
	// Path to text appended at the end of the package's build file.
	AddToplevelBlock string `toml:"add_toplevel_block"`
	// Path to text appended inside each of the package's modules.
	AddModuleBlock string `toml:"add_module_block"`
	// Path to a patch applied to the build file after generation.
	Patch string `toml:"patch"`
	// Copy build-script outputs out of the cargo target directory and
	// emit a genrule exposing them.
	CopyOut bool `toml:"copy_out"`
}

var defaultPackageConfig = PackageConfig{}

// Load parses the config file at path. Unknown keys are an error.
func Load(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown key %q in config %s", undecoded[0].String(), path)
	}
	return &cfg, nil
}

// PackageCfg returns the per-package config for name, or an all-defaults
// config when the package has no entry.
func (c *Config) PackageCfg(name string) *PackageConfig {
	if p, ok := c.Package[name]; ok && p != nil {
		return p
	}
	return &defaultPackageConfig
}

// OverrideName maps a logical module name through the rename table.
func (c *Config) OverrideName(name string) string {
	if o, ok := c.ModuleNameOverrides[name]; ok {
		return o
	}
	return name
}

func (p *PackageConfig) IsDeviceSupported() bool {
	return p.DeviceSupported == nil || *p.DeviceSupported
}

func (p *PackageConfig) IsHostSupported() bool {
	return p.HostSupported == nil || *p.HostSupported
}
