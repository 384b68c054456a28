/* Copyright 2024 The Feedline Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package driver

import (
	"fmt"
	"strings"
)

// Markdown renders the report as a Markdown document, which
// tools.ReportHTML can turn into a web page.
func (r *Report) Markdown() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Input report\n\n")
	fmt.Fprintf(&b, "Stopped: %s\n\n", r.StopReason)

	fmt.Fprintf(&b, "| | count |\n|---|---|\n")
	fmt.Fprintf(&b, "| runs | %d |\n", r.Runs)
	fmt.Fprintf(&b, "| lumis | %d |\n", r.Lumis)
	fmt.Fprintf(&b, "| events | %d |\n", r.Events)
	fmt.Fprintf(&b, "| merges | %d |\n", r.Merges)
	fmt.Fprintf(&b, "| process blocks | %d |\n", r.ProcessBlocks)
	fmt.Fprintf(&b, "| repeats | %d |\n", r.Repeats)
	fmt.Fprintf(&b, "\n")

	if len(r.Files) > 0 {
		fmt.Fprintf(&b, "## Files\n\n")
		for _, f := range r.Files {
			fmt.Fprintf(&b, "1. `%s`\n", f)
		}
		fmt.Fprintf(&b, "\n")
	}

	if !r.Started.IsZero() && !r.Finished.IsZero() {
		fmt.Fprintf(&b, "Elapsed: %s\n", r.Finished.Sub(r.Started))
	}

	return b.String()
}
