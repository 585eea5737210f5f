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

// Package parser extracts rustc invocations and diagnostics from the
// captured output of a verbose cargo build, and decodes each invocation
// into a Crate.
package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// CargoOut is the raw-ish data extracted from a cargo.out transcript.
type CargoOut struct {
	RustcInvocations []string

	// package name => cmd args
	CcInvocations map[string]string
	ArInvocations map[string]string

	// line number => line, for lines starting with "warning: "
	WarningLines map[int]string
	WarningFiles []string

	Errors     []string
	TestErrors []string
}

var (
	// Cargo -v output of a call to rustc.
	rustcRe = regexp.MustCompile("^ +Running `rustc (.*)`$")
	// Cargo -vv output of a call to rustc; may span multiple lines. The
	// first line always carries some CARGO_* env definition.
	rustcVvRe = regexp.MustCompile("^ +Running `.*CARGO_.*=.*$")
	// The reassembled -vv command line.
	rustcVvArgsRe = regexp.MustCompile("^ *Running `.*CARGO_.*=.* rustc (.*)`$")
	// Cargo -vv output of a "cc" or "ar" command, all in one line.
	ccArRe = regexp.MustCompile(`^\[([^ ]*)[^\]]*\] running:? "(cc|ar)" (.*)$`)
	// Rustc file location line under a warning message.
	warningFileRe = regexp.MustCompile(`^ *--> ([^:]*):[0-9]+`)
	// Marker lines written by the driver around each cargo command.
	runningMarkerRe = regexp.MustCompile(`^### Running: .*$`)
)

// ParseCargoOut classifies every line of a transcript. It fails only when
// a multi-line rustc invocation cannot be reassembled; compiler warnings
// and errors found in the transcript are recorded, not raised.
func ParseCargoOut(contents string) (*CargoOut, error) {
	result := &CargoOut{
		CcInvocations: make(map[string]string),
		ArInvocations: make(map[string]string),
		WarningLines:  make(map[int]string),
	}

	inTests := false
	lines := strings.Split(contents, "\n")
	for n := 0; n < len(lines); n++ {
		line := lines[n]

		if strings.HasPrefix(line, "warning: ") {
			result.WarningLines[n] = line
			continue
		}

		if m := rustcRe.FindStringSubmatch(line); m != nil {
			result.RustcInvocations = append(result.RustcInvocations, m[1])
			continue
		}

		if rustcVvRe.MatchString(line) {
			// Strings in environment variable definitions can contain
			// newlines, splitting the command over several lines. A
			// complete command ends with a backtick and contains an even
			// number of them.
			joined := line
			for !(strings.HasSuffix(joined, "`") && strings.Count(joined, "`")%2 == 0) {
				if n+1 >= len(lines) {
					break
				}
				n++
				joined += lines[n]
			}
			m := rustcVvArgsRe.FindStringSubmatch(joined)
			if m == nil {
				return nil, fmt.Errorf("failed to parse cargo.out line: %s", joined)
			}
			result.RustcInvocations = append(result.RustcInvocations, m[1])
			continue
		}

		if m := ccArRe.FindStringSubmatch(line); m != nil {
			switch m[2] {
			case "cc":
				result.CcInvocations[m[1]] = m[3]
			case "ar":
				result.ArInvocations[m[1]] = m[3]
			}
			continue
		}

		if _, ok := result.WarningLines[n-1]; ok {
			if m := warningFileRe.FindStringSubmatch(line); m != nil {
				// TODO: why are absolute paths ignored here?
				if !strings.HasPrefix(m[1], "/") {
					result.WarningFiles = append(result.WarningFiles, m[1])
				}
				continue
			}
		}

		if strings.HasPrefix(line, "error: ") || strings.HasPrefix(line, "error[E") {
			if inTests {
				result.TestErrors = append(result.TestErrors, line)
			} else {
				result.Errors = append(result.Errors, line)
			}
			continue
		}

		if runningMarkerRe.MatchString(line) {
			inTests = strings.Contains(line, "cargo test") && strings.Contains(line, "--list")
			continue
		}
	}

	return result, nil
}
