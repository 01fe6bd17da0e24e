package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/swapmeet/internal/config"
	"github.com/sudo-init-do/swapmeet/internal/logger"
	"github.com/sudo-init-do/swapmeet/internal/marketplace"
	"github.com/sudo-init-do/swapmeet/internal/store"
)

// resolve_report closes an open listing report on behalf of an admin.
// Usage:
//
//	go run ./cmd/adminutil/resolve_report -id <report-id> -admin <admin-user-id>
func main() {
	id := flag.String("id", "", "ID of the report to resolve")
	adminID := flag.String("admin", "", "User ID of the resolving admin")
	flag.Parse()

	logger.Setup("info", true)
	if *id == "" || *adminID == "" {
		log.Fatal().Msg("usage: resolve_report -id <report-id> -admin <admin-user-id>")
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

	if err := marketplace.NewReports(st).Resolve(ctx, *id, *adminID); err != nil {
		log.Fatal().Err(err).Str("report_id", *id).Msg("failed to resolve report")
	}
	fmt.Printf("Report %s resolved.\n", *id)
}
