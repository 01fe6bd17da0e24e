package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sudo-init-do/swapmeet/internal/config"
	"github.com/sudo-init-do/swapmeet/internal/logger"
	"github.com/sudo-init-do/swapmeet/internal/utils"
)

// issue_token mints a bearer token signed with JWT_SECRET, for local testing
// and operator access.
// Usage:
//
//	go run ./cmd/adminutil/issue_token -user <user-id> [-role admin] [-ttl 24h]
func main() {
	userID := flag.String("user", "", "User ID to put in the token")
	role := flag.String("role", "user", "Role claim")
	ttl := flag.Duration("ttl", 24*time.Hour, "Token lifetime")
	flag.Parse()

	logger.Setup("info", true)
	if *userID == "" {
		log.Fatal().Msg("usage: issue_token -user <user-id> [-role admin] [-ttl 24h]")
	}

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	token, err := utils.IssueToken(cfg.JWTSecret, *userID, *role, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to sign token")
	}
	fmt.Println(token)
}
