package main

import (
	"github.com/AndreyRyab/mama-talk/cmd"
	"github.com/AndreyRyab/mama-talk/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
