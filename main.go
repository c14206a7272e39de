package main

import "github.com/ValentinKolb/dCheck/cmd"

func main() {
	cmd.Execute()
}
