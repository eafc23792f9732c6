package main

import "github.com/nicklasfrahm/sshclient/cmd"

func main() {
	cmd.Execute()
}
