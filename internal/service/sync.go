package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"planner/internal/analysis"
	"planner/internal/store"
	"planner/internal/strava"
	"planner/internal/telemetry"
)

// StravaAPI is the part of the Strava client the sync uses
type StravaAPI interface {
	GetActivities(ctx context.Context, after time.Time, page, perPage int) ([]strava.Activity, error)
	GetActivityStreams(ctx context.Context, activityID int64) (*strava.Streams, error)
	GetActivityLaps(ctx context.Context, activityID int64) ([]strava.Lap, error)
}

// SyncService orchestrates syncing data from Strava
type SyncService struct {
	api   StravaAPI
	store *store.DB
	ftp   analysis.FTPLookup
	log   *log.Logger
	now   func() time.Time
}

// NewSyncService creates a sync service. Stream summaries derive IF and
// TSS from power using ftp, which may be nil. A nil logger discards output.
func NewSyncService(api StravaAPI, db *store.DB, ftp analysis.FTPLookup, logger *log.Logger) *SyncService {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &SyncService{api: api, store: db, ftp: ftp, log: logger, now: time.Now}
}

// SyncProgress reports progress during sync
type SyncProgress struct {
	Phase           string
	Total           int
	Completed       int
	CurrentActivity string
}

// SyncResult contains the results of a sync operation
type SyncResult struct {
	ActivitiesFetched int
	ActivitiesStored  int
	StreamsFetched    int
	Errors            []error
}

// SyncAll fetches new activities, then streams for activities that lack one
func (s *SyncService) SyncAll(ctx context.Context, progress chan<- SyncProgress) (*SyncResult, error) {
	if progress != nil {
		defer close(progress)
	}

	result := &SyncResult{}
	if err := s.syncActivities(ctx, progress, result); err != nil {
		return result, fmt.Errorf("syncing activities: %w", err)
	}
	if err := s.syncStreams(ctx, progress, result); err != nil {
		return result, fmt.Errorf("syncing streams: %w", err)
	}

	s.log.Printf("sync done: %d fetched, %d stored, %d streams, %d errors",
		result.ActivitiesFetched, result.ActivitiesStored, result.StreamsFetched, len(result.Errors))
	return result, nil
}

// syncActivities pages through activities started since the last sync
func (s *SyncService) syncActivities(ctx context.Context, progress chan<- SyncProgress, result *SyncResult) error {
	after, err := s.store.LastSync(store.SyncKeyLastActivities)
	if err != nil {
		return fmt.Errorf("reading last sync: %w", err)
	}
	startedAt := s.now()
	report(progress, SyncProgress{Phase: PhaseActivities})

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		activities, err := s.api.GetActivities(ctx, after, page, strava.PageSize)
		if err != nil {
			return fmt.Errorf("fetching page %d: %w", page, err)
		}
		result.ActivitiesFetched += len(activities)

		for _, a := range activities {
			activity := convertActivity(a)
			if err := s.keepAthleteInput(activity); err != nil {
				result.Errors = append(result.Errors, err)
				continue
			}
			if err := s.store.UpsertActivity(activity); err != nil {
				s.log.Printf("storing activity %d: %v", a.ID, err)
				result.Errors = append(result.Errors, fmt.Errorf("storing activity %d: %w", a.ID, err))
				continue
			}
			result.ActivitiesStored++
		}

		report(progress, SyncProgress{
			Phase:     PhaseActivities,
			Total:     result.ActivitiesFetched,
			Completed: result.ActivitiesStored,
		})

		if len(activities) < strava.PageSize {
			break
		}
	}

	return s.store.MarkSynced(store.SyncKeyLastActivities, startedAt)
}

// keepAthleteInput carries feedback entered in the planner over to a
// re-fetched activity so the sync doesn't wipe it
func (s *SyncService) keepAthleteInput(a *store.Activity) error {
	existing, err := s.store.GetActivity(a.ID)
	if errors.Is(err, store.ErrActivityNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading activity %s: %w", a.ID, err)
	}
	a.Feel = existing.Feel
	a.RPE = existing.RPE
	a.RPETouched = existing.RPETouched
	a.Comments = existing.Comments
	a.TSSOverride = existing.TSSOverride
	a.IF = existing.IF
	if existing.Description != "" {
		a.Description = existing.Description
	}
	return nil
}

// syncStreams fetches streams and laps for a batch of activities without a
// stream and stores them with a computed summary
func (s *SyncService) syncStreams(ctx context.Context, progress chan<- SyncProgress, result *SyncResult) error {
	activities, err := s.store.GetActivitiesNeedingStreams(StreamBatchSize)
	if err != nil {
		return fmt.Errorf("getting activities needing streams: %w", err)
	}
	if len(activities) == 0 {
		return nil
	}

	for i, activity := range activities {
		if err := ctx.Err(); err != nil {
			return err
		}
		report(progress, SyncProgress{
			Phase:           PhaseStreams,
			Total:           len(activities),
			Completed:       i,
			CurrentActivity: activity.Name,
		})

		if err := s.syncStream(ctx, activity); err != nil {
			s.log.Printf("activity %s (%s): %v", activity.ID, activity.Name, err)
			result.Errors = append(result.Errors, fmt.Errorf("activity %s (%s): %w", activity.ID, activity.Name, err))
			continue
		}
		result.StreamsFetched++
	}

	report(progress, SyncProgress{Phase: PhaseStreams, Total: len(activities), Completed: len(activities)})
	return s.store.MarkSynced(store.SyncKeyLastStreams, s.now())
}

func (s *SyncService) syncStream(ctx context.Context, activity store.Activity) error {
	stravaID, err := strconv.ParseInt(activity.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing strava id: %w", err)
	}

	streams, err := s.api.GetActivityStreams(ctx, stravaID)
	if err != nil {
		return err
	}

	// Laps are optional; a stream without them still gets one whole-workout lap
	laps, err := s.api.GetActivityLaps(ctx, stravaID)
	if err != nil {
		s.log.Printf("activity %s: no laps: %v", activity.ID, err)
		laps = nil
	}

	start := activity.StartDateLocal
	samples := convertStreams(start, streams)
	if len(samples) == 0 {
		s.log.Printf("activity %s: stream has no samples", activity.ID)
	}

	var ftp float64
	if s.ftp != nil {
		ftp = s.ftp.FTPFor(analysis.SportKey(activity.Type))
	}
	summary, storeLaps := telemetry.Summarize(samples, convertLaps(start, laps), activity.Type, ftp)

	streamID, err := s.store.SaveStream(&store.Stream{Series: samples, Laps: storeLaps, Summary: summary})
	if err != nil {
		return fmt.Errorf("saving stream: %w", err)
	}
	if err := s.store.AttachStream(activity.ID, streamID); err != nil {
		return fmt.Errorf("attaching stream: %w", err)
	}

	return nil
}

func report(progress chan<- SyncProgress, p SyncProgress) {
	if progress != nil {
		progress <- p
	}
}
