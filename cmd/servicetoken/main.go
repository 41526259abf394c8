// Command servicetoken mints the bearer token internal callers present to the
// storefront checkout API.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/jayjaytrn/storefront-checkout/config"
	"github.com/jayjaytrn/storefront-checkout/internal/auth"
	"github.com/jayjaytrn/storefront-checkout/logging"
)

func main() {
	service := flag.String("service", "storefront-web", "Calling service name")
	ttl := flag.Duration("ttl", 30*24*time.Hour, "Token lifetime")

	cfg := config.GetConfig()
	logger := logging.GetSugaredLogger(cfg.Environment)
	defer logger.Sync()

	token, err := auth.BuildJWT(cfg.AuthSecret, *service, *ttl)
	if err != nil {
		logger.Fatalw("failed to build service token", "service", *service, "error", err)
	}

	logger.Infow("service token issued", "service", *service, "expires_in", ttl.String())
	fmt.Println(token)
}
