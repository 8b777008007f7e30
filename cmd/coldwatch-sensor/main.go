package main

import "github.com/solar-surv/coldwatch/cmd/coldwatch-sensor/cmd"

func main() {
	cmd.Execute()
}
