package main

import "github.com/stevelan1995/mailpilot/pkg/cli/cmd"

func main() {
	cmd.Execute()
}
