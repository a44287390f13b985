package delivery

import (
	"context"
	"fmt"
	"sync"

	"github.com/clearview/reportline/pkg/mail"
	"github.com/clearview/reportline/pkg/models/domain"
	"github.com/clearview/reportline/pkg/store/artifact"
	"github.com/rs/zerolog"
)

// Result is the outcome of one artifact/recipient delivery.
type Result struct {
	Recipient string
	Format    domain.ExportFormat
	Delivered bool
	Err       string
}

// Dispatcher sends a completed job's artifacts to the expanded recipient
// set, one delivery per artifact/recipient pair. Failures are recorded
// per recipient; they never roll back the completed job.
type Dispatcher struct {
	mailer mail.Mailer
	store  artifact.Store

	mu      sync.Mutex
	results map[string][]Result
}

func NewDispatcher(mailer mail.Mailer, store artifact.Store) *Dispatcher {
	return &Dispatcher{
		mailer:  mailer,
		store:   store,
		results: make(map[string][]Result),
	}
}

// Dispatch delivers every artifact to every recipient and records the
// per-pair outcomes under the job id.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	cfg domain.ReportConfig,
	job domain.GenerationJob,
	recipients []string,
) []Result {
	logger := zerolog.Ctx(ctx).With().Str("job", job.ID).Logger()

	var results []Result
	for _, ref := range job.Artifacts {
		data, err := d.store.Get(ctx, ref.Key)
		if err != nil {
			// The whole artifact is unavailable; record the failure for
			// every would-be recipient.
			logger.Error().Err(err).Str("key", ref.Key).Msg("artifact unavailable for delivery")
			for _, rcpt := range recipients {
				results = append(results, Result{
					Recipient: rcpt,
					Format:    ref.Format,
					Err:       err.Error(),
				})
			}
			continue
		}

		attachment := mail.Attachment{
			Filename:    filename(ref),
			ContentType: ref.ContentType,
			Data:        data,
		}

		for _, rcpt := range recipients {
			err := d.mailer.Send(ctx, mail.Message{
				To:          rcpt,
				Subject:     cfg.Title,
				Body:        fmt.Sprintf("%s for %s to %s is attached.", cfg.Title, cfg.Period.Start, cfg.Period.End),
				Attachments: []mail.Attachment{attachment},
			})
			res := Result{Recipient: rcpt, Format: ref.Format, Delivered: err == nil}
			if err != nil {
				res.Err = err.Error()
				logger.Warn().Err(err).Str("recipient", rcpt).Str("format", string(ref.Format)).
					Msg("delivery failed")
			}
			results = append(results, res)
		}
	}

	d.mu.Lock()
	d.results[job.ID] = append(d.results[job.ID], results...)
	d.mu.Unlock()

	logger.Info().Int("deliveries", len(results)).Msg("delivery dispatch finished")
	return results
}

// Results returns the recorded outcomes for a job.
func (d *Dispatcher) Results(jobID string) []Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Result(nil), d.results[jobID]...)
}

func filename(ref domain.ArtifactRef) string {
	for i := len(ref.Key) - 1; i >= 0; i-- {
		if ref.Key[i] == '/' {
			return ref.Key[i+1:]
		}
	}
	return ref.Key
}
