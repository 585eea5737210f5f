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

// Package cargo2bp turns the transcript of a verbose cargo build into
// Android.bp files, one per package in the workspace.
package cargo2bp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"android/cargo2bp/bp"
	"android/cargo2bp/config"
	"android/cargo2bp/manifest"
	"android/cargo2bp/parser"
)

const (
	bannerLine1 = "// This file is generated by cargo2bp."
	bannerLine2 = "// Do not modify this file as changes will be overridden on upgrade."
)

// Generate reads the transcript at cargoOutPath and writes one Android.bp
// per package directory seen in it.
func Generate(cargoOutPath string, cfg *config.Config) error {
	data, err := os.ReadFile(cargoOutPath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", cargoOutPath, err)
	}
	cargoOut, err := parser.ParseCargoOut(string(data))
	if err != nil {
		return err
	}

	// Packages that compile native code drive cc/ar themselves; those
	// builds need hand-written cc_* modules and are out of scope here.
	if len(cargoOut.CcInvocations) != 0 || len(cargoOut.ArInvocations) != 0 {
		return fmt.Errorf("found cc/ar invocations in %s; native build steps are not supported", cargoOutPath)
	}

	crates, err := decodeCrates(cargoOut)
	if err != nil {
		return err
	}

	groups := make(map[string][]*parser.Crate)
	for _, c := range crates {
		groups[c.PackageDir] = append(groups[c.PackageDir], c)
	}

	var buildOuts map[string][]string
	if anyCopyOut(cfg) {
		buildOuts, err = collectBuildOuts()
		if err != nil {
			return err
		}
	}

	dirs := make([]string, 0, len(groups))
	for dir := range groups {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		if err := writePackage(dir, groups[dir], cfg, buildOuts); err != nil {
			return err
		}
	}
	return nil
}

// decodeCrates turns every scanned rustc invocation into a Crate and
// attaches its manifest metadata. Build-script compilations and crates
// from outside the workspace are dropped.
func decodeCrates(cargoOut *parser.CargoOut) ([]*parser.Crate, error) {
	var crates []*parser.Crate
	for _, inv := range cargoOut.RustcInvocations {
		c, err := parser.DecodeRustcInvocation(inv)
		if err != nil {
			return nil, fmt.Errorf("failed to process rustc invocation %q: %w", inv, err)
		}
		if strings.HasPrefix(c.Name, "build_script_") || strings.HasPrefix(c.PackageDir, "/") {
			continue
		}
		pkg, err := manifest.Read(c.PackageDir)
		if err != nil {
			return nil, err
		}
		c.PackageName = pkg.Name
		c.Version = pkg.Version
		c.Edition = pkg.Edition
		crates = append(crates, c)
	}
	return crates, nil
}

func writePackage(dir string, crates []*parser.Crate, cfg *config.Config, buildOuts map[string][]string) error {
	pkgName := crates[0].PackageName
	pcfg := cfg.PackageCfg(pkgName)

	var modules []*bp.Module
	for _, c := range crates {
		ms, err := Modules(c, cfg)
		if err != nil {
			return fmt.Errorf("package %s: %w", pkgName, err)
		}
		modules = append(modules, ms...)
	}

	if pcfg.CopyOut {
		if files := buildOuts[pkgName]; len(files) > 0 {
			genrule, err := copyPackageOuts(dir, pkgName, files)
			if err != nil {
				return err
			}
			for _, m := range modules {
				m.AppendToSrcs(":" + genrule.Name())
			}
			modules = append(modules, genrule)
		}
	}

	if cfg.HoistDefaults {
		modules = hoistDefaults(pkgName+"_defaults", modules)
	}

	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Name() < modules[j].Name()
	})
	seen := make(map[string]bool)
	for _, m := range modules {
		if seen[m.Name()] {
			return fmt.Errorf("package %s: duplicate module name %q", pkgName, m.Name())
		}
		seen[m.Name()] = true
	}

	bpPath := filepath.Join(dir, "Android.bp")
	preamble, err := licensePreamble(bpPath)
	if err != nil {
		return err
	}

	var buf strings.Builder
	buf.WriteString(bannerLine1 + "\n")
	buf.WriteString(bannerLine2 + "\n\n")
	if preamble != "" {
		buf.WriteString(preamble)
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
	for _, m := range modules {
		buf.WriteString(m.String())
		buf.WriteString("\n")
	}
	if pcfg.AddToplevelBlock != "" {
		block, err := os.ReadFile(pcfg.AddToplevelBlock)
		if err != nil {
			return fmt.Errorf("failed to read add_toplevel_block: %w", err)
		}
		buf.Write(block)
	}

	if err := os.WriteFile(bpPath, []byte(buf.String()), 0666); err != nil {
		return fmt.Errorf("failed to write %s: %w", bpPath, err)
	}

	runBpfmt(bpPath)
	if pcfg.Patch != "" {
		runPatch(bpPath, pcfg.Patch)
		runBpfmt(bpPath)
	}
	return nil
}

// licensePreamble returns the hand-maintained top of an existing build
// file: everything before the first generated module, minus the generator
// banner so regeneration does not stack banners.
func licensePreamble(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "// TODO: Add license.", nil
	}
	if err != nil {
		return "", fmt.Errorf("error reading %s: %w", path, err)
	}
	var lines []string
	for _, l := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(l, "rust_") || strings.HasPrefix(l, "genrule {") {
			break
		}
		if l == bannerLine1 || l == bannerLine2 {
			continue
		}
		lines = append(lines, l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// Formatter and patcher failures leave a readable, if ugly, build file
// behind, so they only warn.
func runBpfmt(path string) {
	if out, err := exec.Command("bpfmt", "-w", path).CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: bpfmt -w %s failed: %v\n%s", path, err, out)
	}
}

func runPatch(path, patchPath string) {
	if out, err := exec.Command("patch", "-s", path, patchPath).CombinedOutput(); err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: patch -s %s %s failed: %v\n%s", path, patchPath, err, out)
	}
}

func anyCopyOut(cfg *config.Config) bool {
	for _, p := range cfg.Package {
		if p != nil && p.CopyOut {
			return true
		}
	}
	return false
}
