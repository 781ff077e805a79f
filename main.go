package main

import (
	"fmt"
	"os"

	"github.com/insectos/insectos-go/cmd"
	"github.com/insectos/insectos-go/internal/conf"
	"github.com/insectos/insectos-go/internal/logging"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "command error: %v\n", err)
		os.Exit(1)
	}
}
