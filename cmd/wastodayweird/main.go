package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/lox/wastodayweird/internal/config"
)

type Globals struct {
	Config string `help:"Path to YAML config file." type:"path" env:"WASTODAYWEIRD_CONFIG"`
}

type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" help:"Run the HTTP API."`
	Normals NormalsCmd `cmd:"" help:"Print 1991-2020 normals for a location and day of year."`
	Today   TodayCmd   `cmd:"" help:"Compare a forecast day against its normals."`
	Geocode GeocodeCmd `cmd:"" help:"Search for a place by name."`
	Cache   CacheCmd   `cmd:"" help:"Manage the persistent response cache."`
}

// loadConfig reads the config file, falling back to defaults.
func (g *Globals) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("warning: load .env: %v", err)
	}

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("wastodayweird"),
		kong.Description("Was today's weather weird? Forecast anomalies against 1991-2020 climate normals."),
		kong.UsageOnError(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kctx.BindTo(ctx, (*context.Context)(nil))
	if err := kctx.Run(&cli.Globals); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
