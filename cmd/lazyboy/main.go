package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/lazyboy/internal/app"
	"github.com/dmitrijs2005/lazyboy/internal/config"
)

func main() {

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("%v", err)
		os.Exit(2)
	}

	if err := app.NewApp(cfg).Run(ctx); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

}
