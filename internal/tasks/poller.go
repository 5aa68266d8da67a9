package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/desertthunder/tubesync/internal/models"
	"github.com/desertthunder/tubesync/internal/repositories"
	"github.com/desertthunder/tubesync/internal/services"
	"github.com/desertthunder/tubesync/internal/shared"
)

// PollerOpts contains configuration for the stuck-video poller.
type PollerOpts struct {
	Interval   time.Duration // Time between polls; zero disables [Poller.Run]
	NumWorkers int           // Concurrent owners checked (default: 3)
	RateLimit  float64       // Owners checked per second (default: 5)
}

// Poller re-checks videos whose upload is still processing.
type Poller struct {
	store    *repositories.Store
	remote   services.Remote
	auth     Authorizer
	opts     PollerOpts
	progress chan<- ProgressUpdate
	logger   *log.Logger
}

type pollJob struct {
	user   *models.User
	videos []*models.Video
}

type pollResult struct {
	updated int
	err     error
}

// NewPoller creates a [Poller]. Progress updates go to progress, which may be nil.
func NewPoller(store *repositories.Store, remote services.Remote, auth Authorizer, opts PollerOpts, progress chan<- ProgressUpdate, logger *log.Logger) *Poller {
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 3
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Poller{
		store:    store,
		remote:   remote,
		auth:     auth,
		opts:     opts,
		progress: progress,
		logger:   shared.WithLogger(logger, "component", "poller"),
	}
}

// Run polls every interval until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	if p.opts.Interval <= 0 {
		p.logger.Info("poller disabled")
		return nil
	}

	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	p.logger.Info("poller started", "interval", p.opts.Interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			updated, err := p.Poll(ctx)
			if err != nil {
				p.logger.Error("poll failed", "error", err)
				continue
			}
			if updated > 0 {
				p.logger.Info("updated stuck videos", "count", updated)
			}
		}
	}
}

// Poll checks every processing video once and returns how many changed status.
//
// Videos are grouped by owner so each request uses that owner's credentials.
// A video the remote API no longer returns is marked deleted.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	videos, err := p.store.Videos.ListByStatus(ctx, models.StatusProcessing)
	if err != nil {
		return 0, err
	}
	if len(videos) == 0 {
		return 0, nil
	}

	jobs, err := p.group(ctx, videos)
	if err != nil {
		return 0, err
	}

	limiter := rate.NewLimiter(rate.Limit(p.opts.RateLimit), 1)
	queue := make(chan pollJob, len(jobs))
	results := make(chan pollResult, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < min(p.opts.NumWorkers, len(jobs)); i++ {
		wg.Add(1)
		go p.worker(ctx, &wg, limiter, queue, results)
	}

	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		updated, done int
		errs          []error
	)
	for res := range results {
		done++
		updated += res.updated
		if res.err != nil {
			errs = append(errs, res.err)
		}
		sendProgress(p.progress, pollStatusUpdate(done, len(jobs), updated))
	}
	return updated, errors.Join(errs...)
}

func (p *Poller) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	limiter *rate.Limiter,
	jobs <-chan pollJob,
	results chan<- pollResult,
) {
	defer wg.Done()

	for job := range jobs {
		if err := limiter.Wait(ctx); err != nil {
			results <- pollResult{err: err}
			continue
		}
		n, err := p.check(ctx, job)
		results <- pollResult{updated: n, err: err}
	}
}

func (p *Poller) check(ctx context.Context, job pollJob) (int, error) {
	client, err := p.auth.Client(ctx, job.user)
	if err != nil {
		return 0, fmt.Errorf("user %s: %w", job.user.Email, err)
	}

	ids := make([]string, len(job.videos))
	for i, v := range job.videos {
		ids[i] = v.VideoID
	}

	statuses, err := p.remote.VideoStatuses(ctx, client, ids)
	if err != nil {
		return 0, fmt.Errorf("user %s: %w", job.user.Email, err)
	}

	updated := 0
	for _, v := range job.videos {
		status := models.StatusDeleted
		if st, ok := statuses[v.VideoID]; ok {
			status = st.Resolved()
		}
		if status == v.Status {
			continue
		}
		if err := p.store.Videos.UpdateStatus(ctx, v.ID, status); err != nil {
			return updated, err
		}
		p.logger.Debug("video status changed", "video_id", v.VideoID, "status", status)
		updated++
	}
	return updated, nil
}

// group buckets videos by the owner of their playlist, in first-seen order.
func (p *Poller) group(ctx context.Context, videos []*models.Video) ([]pollJob, error) {
	owners := map[string]string{}
	index := map[string]int{}
	var jobs []pollJob

	for _, v := range videos {
		userID, ok := owners[v.PlaylistID]
		if !ok {
			pl, err := p.store.Playlists.Get(ctx, v.PlaylistID)
			if err != nil {
				return nil, err
			}
			userID = pl.UserID
			owners[v.PlaylistID] = userID
		}

		i, ok := index[userID]
		if !ok {
			user, err := p.store.Users.Get(ctx, userID)
			if err != nil {
				return nil, err
			}
			i = len(jobs)
			index[userID] = i
			jobs = append(jobs, pollJob{user: user})
		}
		jobs[i].videos = append(jobs[i].videos, v)
	}
	return jobs, nil
}
