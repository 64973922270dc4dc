package config_test

import (
	"context"
	"fmt"
	"log"

	"github.com/ameyrk/skystore/config"
)

func ExampleWithContext() {
	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8000},
	}

	// Store config in context
	ctx := config.WithContext(context.Background(), cfg)

	// Retrieve later (e.g., in a subcommand)
	retrieved, err := config.FromContext(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Retrieved port: %d\n", retrieved.Server.Port)
	// Output: Retrieved port: 8000
}
