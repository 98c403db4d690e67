package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/cuongbtq/listing-flyer/internal/photos"
	"github.com/cuongbtq/listing-flyer/internal/profile"
	"github.com/cuongbtq/listing-flyer/internal/worker/domain"
)

// Progress lines shown to the submitter
const (
	lineStart       = "🚀 Iniciando robot..."
	lineRender      = "🎨 Generando ficha HTML..."
	linePublish     = "☁️  Subiendo a Netlify..."
	linePublishFail = "⚠️ Error subiendo a Netlify. Revisá el token."
	lineNoToken     = "⚠️ Sin token de Netlify — configurá uno en tu perfil."
	lineCompleted   = "✅ ¡Proceso completado!"
)

// runJob executes one pipeline and pushes exactly one terminal event
func (m *Manager) runJob(j *job, agent profile.AgentProfile) {
	defer m.wg.Done()

	info := j.snapshot()
	logger := m.logger.With(slog.String("job_id", info.ID))

	var resultURL string

	// waiting for a slot is bounded by shutdown only, not by the job timeout
	release, err := m.acquire(m.ctx)
	if err != nil {
		err = domain.NewPipelineError("queue", err)
	} else {
		ctx := m.ctx
		if m.jobTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.jobTimeout)
			defer cancel()
		}

		resultURL, err = m.processJob(ctx, j, info.SourceURL, agent, logger)
		release()
	}

	status := domain.JobStatusDone
	if err != nil {
		status = domain.JobStatusError
		logger.Error("Job execution failed", slog.String("error", err.Error()))
		j.progress(fmt.Sprintf("❌ Error: %v", err))
	} else {
		logger.Info("Job completed successfully", slog.String("result_url", resultURL))
	}

	finishedAt := m.now()
	j.finish(status, resultURL, finishedAt)

	m.notify(domain.CompletionEvent{
		JobID:       info.ID,
		UserID:      info.Owner,
		Status:      status,
		ResultURL:   resultURL,
		CompletedAt: finishedAt,
	}, logger)
}

// processJob runs extraction, rendering and publishing. Publish failures
// degrade to an empty result URL; every other failure is returned.
func (m *Manager) processJob(ctx context.Context, j *job, url string, agent profile.AgentProfile, logger *slog.Logger) (resultURL string, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Pipeline panic",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			resultURL = ""
			err = domain.NewPipelineError("panic", fmt.Errorf("%v", r))
		}
	}()

	j.progress(lineStart)

	page, err := m.launcher.Open(ctx)
	if err != nil {
		return "", domain.NewPipelineError("browser", err)
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			logger.Warn("Failed to close browser", slog.String("error", cerr.Error()))
		}
	}()

	data, err := m.extractor.Extract(ctx, page, url, j.progress)
	if err != nil {
		return "", domain.NewPipelineError("extract", err)
	}
	data.Photos = photos.Limit(data.Photos, m.maxPhotos)

	j.progress(lineRender)
	html, err := m.renderer.Render(data, agent, agent.FormURL)
	if err != nil {
		return "", domain.NewPipelineError("render", err)
	}
	j.setFlyer(html)

	if agent.HostingToken == "" {
		j.progress(lineNoToken)
	} else {
		j.progress(linePublish)
		if published, ok := m.publisher.Publish(ctx, html, agent.HostingToken, data.Location); ok && published != "" {
			resultURL = published
			j.progress("🔗 " + published)
		} else {
			j.progress(linePublishFail)
		}
	}

	j.progress(lineCompleted)
	return resultURL, nil
}
