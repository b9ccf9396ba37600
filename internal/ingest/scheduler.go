package ingest

import (
	"context"
	"log"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lox/wastodayweird/internal/models"
)

// Purger removes expired payloads from a persistent cache.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Scheduler keeps the default location's archive and forecast warm in the
// response cache and periodically purges expired payloads.
type Scheduler struct {
	archive       *ArchiveClient
	forecast      *ForecastClient
	purger        Purger
	location      models.Location
	clock         clockwork.Clock
	warmInterval  time.Duration
	purgeInterval time.Duration
}

func NewScheduler(archive *ArchiveClient, forecast *ForecastClient, purger Purger, location models.Location, clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		archive:       archive,
		forecast:      forecast,
		purger:        purger,
		location:      location,
		clock:         clock,
		warmInterval:  forecastTTL,
		purgeInterval: time.Hour,
	}
}

func (s *Scheduler) Run(ctx context.Context) {
	s.warm(ctx)
	s.purge(ctx)

	warmTicker := s.clock.NewTicker(s.warmInterval)
	purgeTicker := s.clock.NewTicker(s.purgeInterval)
	defer warmTicker.Stop()
	defer purgeTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-warmTicker.Chan():
			s.warm(ctx)
		case <-purgeTicker.Chan():
			s.purge(ctx)
		}
	}
}

func (s *Scheduler) warm(ctx context.Context) {
	lat, lon := s.location.Latitude, s.location.Longitude

	if s.archive != nil {
		records, err := s.archive.FetchDaily(ctx, lat, lon)
		if err != nil {
			log.Printf("scheduler: warm archive for %s: %v", s.location.Name, err)
		} else {
			log.Printf("scheduler: archive for %s has %d days", s.location.Name, len(records))
		}
	}

	if s.forecast != nil {
		fc, err := s.forecast.FetchForecast(ctx, lat, lon)
		if err != nil {
			log.Printf("scheduler: warm forecast for %s: %v", s.location.Name, err)
		} else {
			log.Printf("scheduler: forecast for %s has %d days", s.location.Name, len(fc.Days))
		}
	}
}

func (s *Scheduler) purge(ctx context.Context) {
	if s.purger == nil {
		return
	}
	n, err := s.purger.PurgeExpired(ctx)
	if err != nil {
		log.Printf("scheduler: purge expired payloads: %v", err)
		return
	}
	if n > 0 {
		log.Printf("scheduler: purged %d expired payloads", n)
	}
}
