// Package migration drives a client-side migration run: paginated
// discovery, serial conversion of the pending set, and the paginated
// content-rewrite pass. The session talks to the daemon exclusively through
// its REST API, so it can run anywhere.
package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"crabmigrate/internal/api"
	"crabmigrate/internal/config"
	"crabmigrate/internal/discovery"
	"crabmigrate/internal/encoding"
	"crabmigrate/internal/logging"
	"crabmigrate/internal/mediatype"
	"crabmigrate/internal/restclient"
	"crabmigrate/internal/rewrite"
	"crabmigrate/internal/taskqueue"
)

// ErrPaused is returned when a phase stops at a suspension point because
// the session was paused. Already-completed work is retained.
var ErrPaused = errors.New("migration paused")

// Backend is the server surface the session drives. *restclient.Client
// satisfies it.
type Backend interface {
	Discover(ctx context.Context, page int) (*discovery.Result, error)
	FetchAsset(ctx context.Context, url string) ([]byte, error)
	UploadMedia(ctx context.Context, params restclient.UploadParams) (*api.UploadResponse, error)
	SetFailure(ctx context.Context, attachmentID int64) (*api.SetFailureResponse, error)
	ReplaceContent(ctx context.Context, page int) (*rewrite.PageResult, error)
	MigrationStatus(ctx context.Context) (*api.MigrationStatus, error)
}

// Progress is a snapshot of session counters.
type Progress struct {
	Discovered int
	Remaining  int
	Converted  int
	Failed     int
	Skipped    int
	Replaced   int
}

// Session is one migration run. Conversion is serial per asset; the encode
// queue underneath may run other callers' work concurrently.
type Session struct {
	backend  Backend
	encoder  encoding.Client
	queue    *taskqueue.Queue
	format   mediatype.FormatConfig
	quality  float64
	speed    int
	excluded mediatype.ExclusionSet
	logger   *slog.Logger

	mu       sync.Mutex
	paused   bool
	pending  []discovery.Image
	progress Progress
}

// NewSession builds a session from daemon configuration.
func NewSession(cfg *config.Config, backend Backend, encoder encoding.Client, queue *taskqueue.Queue, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	if queue == nil {
		queue = taskqueue.New(taskqueue.DefaultConcurrency())
	}
	return &Session{
		backend:  backend,
		encoder:  encoder,
		queue:    queue,
		format:   mediatype.Format(cfg.Optimize.Format),
		quality:  cfg.Optimize.Quality,
		speed:    cfg.Optimize.Speed,
		excluded: mediatype.NewExclusionSet(cfg.Optimize.ExcludedTypes),
		logger:   logging.WithComponent(logger, "migration"),
	}
}

// Pause requests the session to stop at the next suspension point. In-flight
// work is never canceled.
func (s *Session) Pause() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// Resume clears the pause flag; the caller restarts the interrupted phase.
func (s *Session) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

// IsPaused reports whether a pause was requested.
func (s *Session) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Progress returns a snapshot of the session counters.
func (s *Session) Progress() Progress {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.progress
	snapshot.Remaining = len(s.pending)
	return snapshot
}

// Run executes all three phases in order. A pause surfaces as ErrPaused;
// calling Run again after Resume picks up the remaining work.
func (s *Session) Run(ctx context.Context) error {
	if err := s.DiscoverAll(ctx); err != nil {
		return err
	}
	if err := s.ConvertPending(ctx); err != nil {
		return err
	}
	return s.ReplaceAll(ctx)
}

// DiscoverAll walks every catalog page and accumulates the pending set.
// Images already converted on the server are dropped from a previously
// accumulated pending set.
func (s *Session) DiscoverAll(ctx context.Context) error {
	var pending []discovery.Image
	page := 1
	for {
		if s.IsPaused() {
			s.setPending(pending)
			return ErrPaused
		}
		result, err := s.backend.Discover(ctx, page)
		if err != nil {
			s.setPending(pending)
			return fmt.Errorf("discover page %d: %w", page, err)
		}
		for _, image := range result.Images {
			if image.IsOptimized || image.OptimizedID != 0 {
				continue
			}
			pending = append(pending, image)
		}
		if result.IsLast || len(result.Images) == 0 {
			break
		}
		page++
	}

	s.mu.Lock()
	s.pending = pending
	s.progress.Discovered = len(pending)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "discovery finished",
		logging.Int("pages", page),
		logging.Int("pending", len(pending)))
	return nil
}

func (s *Session) setPending(pending []discovery.Image) {
	s.mu.Lock()
	s.pending = pending
	s.progress.Discovered = len(pending)
	s.mu.Unlock()
}

// ConvertPending works through the pending set one asset at a time. The
// pause flag is checked before each asset; a failure on one asset is
// reported to the server and never aborts the loop.
func (s *Session) ConvertPending(ctx context.Context) error {
	for {
		if s.IsPaused() {
			return ErrPaused
		}
		image, ok := s.nextPending()
		if !ok {
			return nil
		}

		if s.excluded.Excluded(image.MimeType) || image.MimeType == s.format.MimeType {
			s.bump(func(p *Progress) { p.Skipped++ })
			continue
		}

		if err := s.convertOne(ctx, image); err != nil {
			s.bump(func(p *Progress) { p.Failed++ })
			s.logger.WarnContext(ctx, "conversion failed",
				logging.Int64(logging.FieldAttachmentID, image.ID),
				logging.Error(err))
			if _, failErr := s.backend.SetFailure(ctx, image.ID); failErr != nil {
				s.logger.WarnContext(ctx, "failure report not accepted",
					logging.Int64(logging.FieldAttachmentID, image.ID),
					logging.Error(failErr))
			}
			continue
		}
		s.bump(func(p *Progress) { p.Converted++ })
	}
}

func (s *Session) nextPending() (discovery.Image, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pending) == 0 {
		return discovery.Image{}, false
	}
	image := s.pending[0]
	s.pending = s.pending[1:]
	return image, true
}

func (s *Session) bump(update func(*Progress)) {
	s.mu.Lock()
	update(&s.progress)
	s.mu.Unlock()
}

// convertOne runs the fetch/encode/upload sequence for one asset. The
// encode runs on the shared queue; this caller waits for its slot.
func (s *Session) convertOne(ctx context.Context, image discovery.Image) error {
	source, err := s.backend.FetchAsset(ctx, image.URL)
	if err != nil {
		return fmt.Errorf("fetch source: %w", err)
	}
	if len(source) == 0 {
		return errors.New("fetched empty source")
	}

	var encoded []byte
	encodeErr := <-s.queue.Submit(ctx, func(taskCtx context.Context) error {
		var err error
		encoded, err = s.encoder.Encode(taskCtx, source, encoding.Params{
			Format:  s.format.Name,
			Quality: s.quality,
			Speed:   s.speed,
		})
		return err
	})
	if encodeErr != nil {
		return fmt.Errorf("encode: %w", encodeErr)
	}
	if len(encoded) == 0 {
		return errors.New("encoder returned empty result")
	}

	upload, err := s.backend.UploadMedia(ctx, restclient.UploadParams{
		FileName:    convertedFileName(image.URL, s.format),
		MimeType:    s.format.MimeType,
		Data:        encoded,
		IsOptimized: true,
		IsMigration: true,
		OriginalID:  image.ID,
		Format:      s.format.Name,
	})
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	s.logger.InfoContext(ctx, "converted asset",
		logging.Int64(logging.FieldAttachmentID, image.ID),
		logging.Int64(logging.FieldOptimizedID, upload.ID),
		logging.String("format", s.format.Name))
	return nil
}

// ReplaceAll walks every document page through the server-side rewriter and
// accumulates the replaced count.
func (s *Session) ReplaceAll(ctx context.Context) error {
	page := 1
	for {
		if s.IsPaused() {
			return ErrPaused
		}
		result, err := s.backend.ReplaceContent(ctx, page)
		if err != nil {
			return fmt.Errorf("replace page %d: %w", page, err)
		}
		s.bump(func(p *Progress) { p.Replaced += result.Replaced })
		if result.IsLast || result.Processed == 0 {
			break
		}
		page++
	}

	s.logger.InfoContext(ctx, "content rewrite finished",
		logging.Int("pages", page),
		logging.Int("replaced", s.Progress().Replaced))
	return nil
}

// convertedFileName derives the upload name from the source URL, swapping
// the extension for the target format's.
func convertedFileName(sourceURL string, format mediatype.FormatConfig) string {
	name := sourceURL
	if idx := strings.LastIndexByte(name, '/'); idx >= 0 {
		name = name[idx+1:]
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	if name == "" {
		name = "converted"
	}
	return name + "." + format.Extension
}
