package main

import (
	"errors"
	"log"
	"os"

	"github.com/civicworks/townhall/internal/auth/app"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := app.ConfigFromArgs("auth", os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("failed to initialize application: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}
