package main

import "github.com/ValentinKolb/chbridge/cmd"

func main() {
	cmd.Execute()
}
