// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/crescent-rt/crescent/cmd/crescent"

func main() {
	cmd.Execute()
}
