package main

import "github.com/mensylisir/xmadmin/cmd"

func main() {
	cmd.Execute()
}
