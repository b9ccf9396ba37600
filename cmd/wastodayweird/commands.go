package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/lox/wastodayweird/internal/api"
	"github.com/lox/wastodayweird/internal/climate"
	"github.com/lox/wastodayweird/internal/config"
	"github.com/lox/wastodayweird/internal/forecast"
	"github.com/lox/wastodayweird/internal/ingest"
	"github.com/lox/wastodayweird/internal/models"
	"github.com/lox/wastodayweird/internal/report"
)

type ServeCmd struct {
	Listen string `help:"Address to listen on (overrides config)." env:"WASTODAYWEIRD_LISTEN"`
	Warm   bool   `help:"Keep the default location warm in the cache (overrides config)."`
}

func (c *ServeCmd) Run(g *Globals, ctx context.Context) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	if c.Listen != "" {
		cfg.Listen = c.Listen
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := api.Options{
		Addr:       cfg.Listen,
		Location:   cfg.Location,
		Reports:    a.reports,
		Forecast:   a.forecast,
		Geocoder:   a.geocode,
		AirQuality: a.airQuality,
		Clock:      a.clock,
	}
	if a.store != nil {
		opts.CacheStats = a.store
	}

	if cfg.WarmCache || c.Warm {
		var purger ingest.Purger
		if a.store != nil {
			purger = a.store
		}
		sched := ingest.NewScheduler(a.archive, a.forecast, purger, cfg.Location, a.clock)
		go sched.Run(ctx)
	}

	log.Printf("wastodayweird: default location %s (%.4f, %.4f)",
		cfg.Location.Name, cfg.Location.Latitude, cfg.Location.Longitude)
	return api.NewServer(opts).Run(ctx)
}

// locationFlags selects a location, falling back to the configured default.
type LocationFlags struct {
	Lat  *float64 `help:"Latitude in decimal degrees."`
	Lon  *float64 `help:"Longitude in decimal degrees."`
	Name string   `help:"Display name for the location."`
}

func (f LocationFlags) resolve(cfg *config.Config) (models.Location, error) {
	if f.Lat == nil && f.Lon == nil {
		return cfg.Location, nil
	}
	if f.Lat == nil || f.Lon == nil {
		return models.Location{}, errors.New("--lat and --lon must be given together")
	}
	if *f.Lat < -90 || *f.Lat > 90 || *f.Lon < -180 || *f.Lon > 180 {
		return models.Location{}, fmt.Errorf("coordinates out of range: %v, %v", *f.Lat, *f.Lon)
	}
	return models.Location{Name: f.Name, Latitude: *f.Lat, Longitude: *f.Lon}, nil
}

func parseDateFlag(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return d, nil
}

type NormalsCmd struct {
	LocationFlags

	Date string `help:"Date (YYYY-MM-DD) whose day of year to use. Defaults to today."`
	DOY  int    `name:"doy" help:"Day of year (1-366). Overrides --date."`
}

func (c *NormalsCmd) Run(g *Globals, ctx context.Context) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	loc, err := c.resolve(cfg)
	if err != nil {
		return err
	}

	var doy climate.DayOfYear
	if c.DOY != 0 {
		var ok bool
		if doy, ok = climate.FromRaw(c.DOY); !ok {
			return fmt.Errorf("day of year %d out of range 1..366", c.DOY)
		}
	} else {
		date, err := parseDateFlag(c.Date)
		if err != nil {
			return err
		}
		if date.IsZero() {
			date = time.Now()
		}
		doy = climate.DayOfYearOf(date)
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.reports.Normals(ctx, loc.Latitude, loc.Longitude, doy)
	if err != nil {
		return err
	}

	fmt.Printf("Normals for day %d at %.4f, %.4f (%d samples, 1991-2020)\n\n",
		n.DayOfYear, loc.Latitude, loc.Longitude, n.SampleSize)

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIABLE\tMEAN\tSTD\tN")
	printSummary(tw, "Temperature (°C)", n.Temperature)
	printSummary(tw, "Wind max (m/s)", n.Wind)
	printSummary(tw, "Humidity (%)", n.Humidity)
	tw.Flush()

	fmt.Println("\nFortnight")
	tw = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DOY\tTEMP\tSTD\tWIND\tN")
	for _, p := range n.Fortnight {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\n", p.DayOfYear,
			report.FormatValue(p.Temperature.Mean), stdString(p.Temperature),
			report.FormatValue(p.Wind.Mean), p.Temperature.N)
	}
	return tw.Flush()
}

func printSummary(tw *tabwriter.Writer, label string, s climate.Summary) {
	fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", label, report.FormatValue(s.Mean), stdString(s), s.N)
}

func stdString(s climate.Summary) string {
	if !s.StdDev.Valid {
		return report.Placeholder
	}
	return report.FormatValue(s.StdDev.Float64)
}

type TodayCmd struct {
	LocationFlags

	Date string `help:"Forecast date (YYYY-MM-DD). Defaults to the first forecast day."`
}

func (c *TodayCmd) Run(g *Globals, ctx context.Context) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	loc, err := c.resolve(cfg)
	if err != nil {
		return err
	}
	date, err := parseDateFlag(c.Date)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	rep, err := a.reports.Build(ctx, loc, date)
	if err != nil {
		return err
	}

	name := rep.Location.Name
	if name == "" {
		name = fmt.Sprintf("%.4f, %.4f", rep.Location.Latitude, rep.Location.Longitude)
	}
	fmt.Printf("%s on %s (day %d)\n", name, rep.Date.Format(time.DateOnly), rep.DayOfYear)
	if rep.Day.WMOCode.Valid {
		info := forecast.DescribeCode(int(rep.Day.WMOCode.Int64))
		fmt.Printf("%s %s\n", info.Icon, info.Label)
	}
	fmt.Println()
	fmt.Printf("Temperature  %s\n", report.FormatAnomaly(rep.Temperature, "°C"))
	fmt.Printf("Wind         %s\n", report.FormatAnomaly(rep.Wind, "m/s"))
	fmt.Printf("Humidity     %s\n", report.FormatAnomaly(rep.Humidity, "%"))

	if len(rep.Upcoming) == 0 {
		return nil
	}
	fmt.Println("\nUpcoming")
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DAY\tTEMP\tNORMAL\tANOMALY")
	for _, u := range rep.Upcoming {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", u.Date.Format(time.DateOnly),
			report.FormatValue(u.Actual), report.FormatValue(u.Normal),
			report.FormatDelta(u.Anomaly, "°C"))
	}
	return tw.Flush()
}

type GeocodeCmd struct {
	Query string `arg:"" help:"Place name to search for."`
}

func (c *GeocodeCmd) Run(g *Globals, ctx context.Context) error {
	cfg, err := g.loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	places, err := a.geocode.Search(ctx, c.Query)
	if err != nil {
		return err
	}
	if len(places) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tLAT\tLON")
	for _, p := range places {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\n", p.Name, p.Latitude, p.Longitude)
	}
	return tw.Flush()
}

type CacheCmd struct {
	Purge CachePurgeCmd `cmd:"" help:"Delete expired payloads from the SQLite cache."`
	Stats CacheStatsCmd `cmd:"" help:"Show SQLite cache statistics."`
}

// openSQLiteApp opens the app and insists on the SQLite cache backend.
func openSQLiteApp(ctx context.Context, g *Globals) (*app, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Cache.Backend != config.CacheSQLite {
		return nil, fmt.Errorf("cache backend is %q, these commands need %q", cfg.Cache.Backend, config.CacheSQLite)
	}
	return newApp(ctx, cfg)
}

type CachePurgeCmd struct{}

func (c *CachePurgeCmd) Run(g *Globals, ctx context.Context) error {
	a, err := openSQLiteApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.store.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Purged %d expired payloads.\n", n)
	return nil
}

type CacheStatsCmd struct{}

func (c *CacheStatsCmd) Run(g *Globals, ctx context.Context) error {
	a, err := openSQLiteApp(ctx, g)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.store.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Entries:     %d\n", stats.TotalCount)
	fmt.Printf("Size:        %d bytes (%d compressed)\n", stats.TotalSizeBytes, stats.TotalCompressedSize)
	fmt.Printf("Hits:        %d\n", stats.TotalHits)

	endpoints := make([]string, 0, len(stats.CountByEndpoint))
	for ep := range stats.CountByEndpoint {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)
	for _, ep := range endpoints {
		fmt.Printf("  %-12s %d\n", ep, stats.CountByEndpoint[ep])
	}
	return nil
}
