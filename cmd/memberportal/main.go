// Command memberportal runs the LINE member portal API.
//
// Usage:
//
//	memberportal [serve] [-config config.yaml] [-env .env]
//	memberportal migrate [-config config.yaml]
//	memberportal create-admin -username root [-password secret] [-super]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/amsel-crm/memberportal/internal/app"
	"github.com/amsel-crm/memberportal/internal/config"
	log "github.com/sirupsen/logrus"
)

func main() {
	command := "serve"
	args := os.Args[1:]
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	fs := flag.NewFlagSet(command, flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.yaml (default $MEMBERPORTAL_CONFIG or config.yaml)")
	envFile := fs.String("env", ".env", "dotenv file loaded before the environment")
	username := fs.String("username", "", "admin username (create-admin)")
	password := fs.String("password", "", "admin password (create-admin)")
	displayName := fs.String("display-name", "", "admin display name (create-admin)")
	super := fs.Bool("super", false, "grant every permission (create-admin)")
	if errParse := fs.Parse(args); errParse != nil {
		os.Exit(2)
	}

	appCfg := config.AppConfig{ConfigPath: *configPath, EnvFile: *envFile}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "serve":
		err = app.RunServer(ctx, appCfg)
	case "migrate":
		err = app.Migrate(ctx, appCfg)
	case "create-admin":
		var generated string
		_, generated, err = app.CreateAdmin(ctx, appCfg, app.CreateAdminParams{
			Username:    *username,
			Password:    *password,
			DisplayName: *displayName,
			Super:       *super,
		})
		if err == nil && *password == "" {
			fmt.Printf("generated password for %s: %s\n", *username, generated)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q (want serve, migrate or create-admin)\n", command)
		os.Exit(2)
	}
	if err != nil {
		stop()
		log.WithError(err).Fatal(command + " failed")
	}
}
