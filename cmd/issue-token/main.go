// Command issue-token prints a bearer token for an existing user, or
// bootstraps a new user (typically the first accountant) and prints theirs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/travel-expense/internal/config"
	"github.com/garyjia/travel-expense/internal/container"
	"github.com/garyjia/travel-expense/internal/domain/entity"
	httpapi "github.com/garyjia/travel-expense/internal/interfaces/http"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	userID := flag.Int64("user", 0, "ID of an existing user")
	login := flag.String("login", "", "login of the user to create")
	name := flag.String("name", "", "display name of the user to create")
	groups := flag.String("groups", "", "comma separated security groups, e.g. accountant,treasury")
	larkID := flag.String("lark", "", "Lark open_id used for notifications")
	flag.Parse()

	if err := run(*configPath, *userID, *login, *name, *groups, *larkID); err != nil {
		fmt.Fprintf(os.Stderr, "issue-token: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, userID int64, login, name, groups, larkID string) error {
	if (userID == 0) == (login == "") {
		return fmt.Errorf("exactly one of -user or -login is required")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	ctx := context.Background()
	c, err := container.NewContainer(cfg.ToContainerConfig(), zap.NewNop())
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer c.Close()

	catalog := c.Stores().Catalog
	if login != "" {
		user := &entity.User{
			Login:      login,
			Name:       name,
			Groups:     splitGroups(groups),
			LarkOpenID: larkID,
		}
		if user.Name == "" {
			user.Name = login
		}
		if err := catalog.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		userID = user.ID
		fmt.Fprintf(os.Stderr, "created user %d (%s)\n", user.ID, user.Login)
	} else {
		user, err := catalog.GetUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("user %d not found", userID)
		}
	}

	token, err := httpapi.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL).Issue(userID)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func splitGroups(raw string) []string {
	var groups []string
	for _, g := range strings.Split(raw, ",") {
		if g = strings.TrimSpace(g); g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}
