// SPDX-License-Identifier: MPL-2.0

// Command redlab builds, packages and releases projects described by a
// redlab.cue project file.
package main

import cmd "github.com/redlab/redlab/cmd/redlab"

func main() {
	cmd.Execute()
}
