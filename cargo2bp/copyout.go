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

package cargo2bp

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"android/cargo2bp/bp"

	"github.com/google/blueprint/pathtools"
)

// collectBuildOuts finds build-script outputs in the cargo scratch tree,
// keyed by package name. Build directories are named <package>-<hash>.
func collectBuildOuts() (map[string][]string, error) {
	matches, _, err := pathtools.Glob("target.tmp/**/build/*/out/*", nil, pathtools.FollowSymlinks)
	if err != nil {
		return nil, fmt.Errorf("failed to glob build outputs: %w", err)
	}
	outs := make(map[string][]string)
	for _, m := range matches {
		buildDir := filepath.Base(filepath.Dir(filepath.Dir(m)))
		i := strings.LastIndex(buildDir, "-")
		if i <= 0 {
			continue
		}
		pkg := buildDir[:i]
		outs[pkg] = append(outs[pkg], m)
	}
	for _, files := range outs {
		sort.Strings(files)
	}
	return outs, nil
}

// copyPackageOuts mirrors a package's build-script outputs into its out/
// directory and returns the genrule module that re-exports them.
func copyPackageOuts(pkgDir, pkg string, files []string) (*bp.Module, error) {
	outDir := filepath.Join(pkgDir, "out")
	if err := os.MkdirAll(outDir, 0777); err != nil {
		return nil, err
	}
	var names []string
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read build output %s: %w", f, err)
		}
		name := filepath.Base(f)
		if err := os.WriteFile(filepath.Join(outDir, name), data, 0666); err != nil {
			return nil, err
		}
		names = append(names, name)
	}

	g := bp.NewModule("genrule")
	g.Props.Set("name", bp.String("copy_"+pkg+"_build_out"))
	g.Props.Set("srcs", bp.Strings("out/*"))
	g.Props.Set("cmd", bp.String("cp $(in) $(genDir)"))
	g.Props.Set("out", bp.Strings(names...))
	return g, nil
}
