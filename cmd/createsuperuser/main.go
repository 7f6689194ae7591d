// Command createsuperuser bootstraps a global-scope account.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/spec-kit/letter-service/internal/config"
	"github.com/spec-kit/letter-service/internal/observability"
	"github.com/spec-kit/letter-service/internal/persistence"
	"github.com/spec-kit/letter-service/internal/repository"
	"github.com/spec-kit/letter-service/internal/service"
	apperrors "github.com/spec-kit/letter-service/pkg/util/errorutil"
)

func main() {
	username := flag.String("username", "", "login name of the new superuser")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil || pg.PoolHandle() == nil {
		log.Fatalf("postgres unavailable: %v", err)
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	name := strings.TrimSpace(*username)
	if name == "" {
		fmt.Print("Username: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			log.Fatalf("read username: %v", err)
		}
		name = strings.TrimSpace(line)
	}
	password, err := promptPassword()
	if err != nil {
		log.Fatalf("%v", err)
	}

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:   repository.NewUserRepository(pg.PoolHandle()),
		Logger:     logger,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	user, err := authService.CreateSuperuser(ctx, name, password)
	if err != nil {
		var de *apperrors.DomainError
		if errors.As(err, &de) && de.Code == apperrors.CodeValidation {
			if fields, ok := de.Details["fields"].(map[string]string); ok {
				for field, msg := range fields {
					fmt.Fprintf(os.Stderr, "%s: %s\n", field, msg)
				}
				os.Exit(1)
			}
		}
		log.Fatalf("create superuser: %v", err)
	}
	fmt.Printf("Superuser %q created.\n", user.Username)
}

func promptPassword() (string, error) {
	fmt.Print("Password: ")
	first, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Print("Password (again): ")
	second, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
