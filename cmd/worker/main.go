package main

import (
	"context"
	"log"

	"github.com/pr-poehali-dev/game-store-offline/internal/worker"
	"github.com/pr-poehali-dev/game-store-offline/internal/worker/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := worker.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
