// Command connector aggregates status and routes jobs across analysis engine instances.
package main

import "github.com/JakeFAU/cortex-connector/cmd"

func main() {
	cmd.Execute()
}
