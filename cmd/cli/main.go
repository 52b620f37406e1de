package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/zhusq20/APIFarm/internal/client/cli"
	"github.com/zhusq20/APIFarm/internal/client/client"
	"github.com/zhusq20/APIFarm/internal/client/config"
)

func main() {

	ctx := context.Background()
	cfg, args, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := cli.NewApp(cfg)
	if errors.Is(err, client.ErrServerURLNotConfigured) {
		fmt.Println("Error: API_FARM_SERVER_URL environment variable is not set.")
		fmt.Println("Please set it before running the CLI:")
		fmt.Println("  export API_FARM_SERVER_URL=http://localhost:8081")
		fmt.Println("\nOr get the server URL by running: apifarm-server")
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}

	os.Exit(app.Run(ctx, args))
}
