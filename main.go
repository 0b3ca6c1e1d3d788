package main

import (
	"github.com/sitewarden/sitewarden/cmd"
	"github.com/sitewarden/sitewarden/internal/config"
)

func main() {
	config.LoadConfig()
	cmd.Execute()
}
