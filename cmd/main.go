package main

import (
	"github.com/sensor-collector/cmd/agent"
)

func main() {
	agent.Execute()
}
