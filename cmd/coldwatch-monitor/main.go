package main

import "github.com/solar-surv/coldwatch/cmd/coldwatch-monitor/cmd"

func main() {
	cmd.Execute()
}
