package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/swapmeet/internal/admin"
	"github.com/sudo-init-do/swapmeet/internal/config"
	"github.com/sudo-init-do/swapmeet/internal/logger"
	"github.com/sudo-init-do/swapmeet/internal/store"
)

// wipe_data deletes every listing, request, room, message, notification and
// report. Used to reset staging environments.
// Usage:
//
//	go run ./cmd/adminutil/wipe_data -yes
func main() {
	yes := flag.Bool("yes", false, "Confirm deletion of all marketplace data")
	flag.Parse()

	logger.Setup("info", true)
	if !*yes {
		log.Fatal().Msg("refusing to wipe without -yes")
	}

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx := context.Background()
	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	deleted, err := admin.Wipe(ctx, st)
	if err != nil {
		log.Fatal().Err(err).Msg("wipe failed")
	}
	for table, n := range deleted {
		fmt.Printf("%-20s %d\n", table, n)
	}
}
