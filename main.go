package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/newsgate/internal/api"
	"github.com/hazyhaar/newsgate/internal/auth"
	"github.com/hazyhaar/newsgate/internal/config"
	"github.com/hazyhaar/newsgate/internal/db"
	"github.com/hazyhaar/newsgate/internal/gate"
	"github.com/hazyhaar/newsgate/internal/mcp"
	"github.com/hazyhaar/newsgate/pkg/audit"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		cmdServe(os.Args[2:])
	case "mcp":
		cmdMCP(os.Args[2:])
	case "version":
		fmt.Printf("newsgate %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`newsgate — evidence-gated story publishing

Usage:
  newsgate serve [--config config.toml] [--addr :8080]
  newsgate mcp [--config config.toml]
  newsgate version
  newsgate help

Commands:
  serve     Start the HTTP server
  mcp       Serve the tool interface over stdio
  version   Print version
  help      Show this help`)
}

func cmdServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	addr := fs.String("addr", "", "listen address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	database, auditLog, publisher := wire(cfg)
	defer database.Close()
	defer auditLog.Close()

	a := auth.New(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiryMin)
	apiHandler := api.New(database, a, publisher, cfg.Platform.ID)

	mux := http.NewServeMux()
	apiHandler.RegisterRoutes(mux)

	log.Printf("newsgate %s listening on %s", version, cfg.Server.Addr)
	log.Printf("database: %s", cfg.Database.Path)
	log.Printf("platform: %s scope: %s", cfg.Platform.ID, cfg.Platform.Scope)

	if err := http.ListenAndServe(cfg.Server.Addr, api.SecurityHeaders(mux)); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func cmdMCP(args []string) {
	fs := flag.NewFlagSet("mcp", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config.toml")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	database, auditLog, publisher := wire(cfg)
	defer database.Close()
	defer auditLog.Close()

	srv := mcp.NewServer(database, publisher, cfg.Platform.ID, auditLog)
	if err := srv.Run(context.Background(), &mcpsdk.StdioTransport{}); err != nil {
		log.Fatalf("mcp server error: %v", err)
	}
}

func wire(cfg *config.Config) (*db.DB, audit.Logger, *gate.Publisher) {
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("opening database: %v", err)
	}

	auditLog := audit.NewSQLiteLogger(database.DB)
	if err := auditLog.Init(); err != nil {
		log.Fatalf("initializing audit log: %v", err)
	}

	publisher := gate.NewPublisher(database, cfg.Platform.ID, cfg.Platform.Scope, gate.Thresholds{
		MinPrimaryEvidenceRatio:        cfg.Gate.MinPrimaryEvidenceRatio,
		MaxUnsupportedClaimShare:       cfg.Gate.MaxUnsupportedClaimShare,
		RequireHighImpactCorroboration: cfg.Gate.RequireHighImpactCorroboration,
	})

	return database, auditLog, publisher
}
