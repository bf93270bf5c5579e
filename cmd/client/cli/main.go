package main

import (
	"context"
	"log"

	"github.com/pr-poehali-dev/game-store-offline/internal/page/cli"
	"github.com/pr-poehali-dev/game-store-offline/internal/page/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg)

	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)

}
