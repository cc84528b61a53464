// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import "github.com/exptrack-org/exptrack/cmd"

func main() {
	cmd.Execute()
}
