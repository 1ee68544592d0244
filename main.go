// SPDX-License-Identifier: MPL-2.0

package main

import cmd "castoff/cmd/castoff"

func main() {
	cmd.Execute()
}
