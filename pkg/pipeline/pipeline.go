// Package pipeline sequences one download request from link classification
// through delivery and cleanup.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"

	"anydown/pkg/delivery"
	"anydown/pkg/extractor"
	"anydown/pkg/linkcheck"
)

// Request is one inbound download request. It is immutable for the lifetime
// of a pipeline run.
type Request struct {
	URL    string
	ChatID string
}

// Outcome tags how a pipeline run ended. Used for logging only.
type Outcome string

const (
	OutcomeStreamed       Outcome = "streamed"
	OutcomeSentAsDocument Outcome = "sent_as_document"
	OutcomeRejected       Outcome = "rejected"
	OutcomeFailed         Outcome = "failed"
)

// Activity names understood by the transport.
const (
	ActivityTyping      = "typing"
	ActivityUploadVideo = "upload_video"
)

// User-facing messages. Wording follows the bot's established replies.
const (
	rejectionText = "❌ Unsupported platform. Send links from YouTube/Facebook/Instagram/Twitter only."
	policyText    = "⚠️ Couldn't download this video. It might be private or age-restricted."
	genericText   = "❌ An unexpected error occurred. Please try again later."
)

// MessageRef is an opaque handle to a previously sent chat message.
type MessageRef struct {
	ChatID    string
	MessageID int
}

// Transport is the messaging channel the pipeline replies through.
type Transport interface {
	SendText(ctx context.Context, chatID string, text string) error
	SendActivity(ctx context.Context, chatID string, activity string) error
	SendProgress(ctx context.Context, chatID string, text string) (MessageRef, error)
	SendVideo(ctx context.Context, chatID string, path string, caption string) error
	SendDocument(ctx context.Context, chatID string, path string, caption string) error
	DeleteMessage(ctx context.Context, ref MessageRef) error
}

// Extractor is the download backend the pipeline probes and fetches through.
type Extractor interface {
	Probe(ctx context.Context, url string) (extractor.MediaInfo, error)
	Fetch(ctx context.Context, url string, destDir string) (extractor.DownloadResult, error)
}

// Pipeline orchestrates download requests. All per-request state lives on the
// stack of Run, so one Pipeline serves concurrent requests without locking.
type Pipeline struct {
	extractor Extractor
	transport Transport
	supported func(string) bool
	tempRoot  string
	log       *slog.Logger
}

// New validates collaborators and constructs a Pipeline.
func New(ext Extractor, transport Transport, log *slog.Logger) (*Pipeline, error) {
	if ext == nil {
		return nil, errors.New("extractor is required")
	}
	if transport == nil {
		return nil, errors.New("transport is required")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Pipeline{
		extractor: ext,
		transport: transport,
		supported: linkcheck.Supported,
		tempRoot:  os.TempDir(),
		log:       log.With("component", "pipeline"),
	}, nil
}

// Run executes one request end to end and reports how it ended.
//
// The request-scoped download directory and the progress notification are
// released on every exit path past their creation.
func (p *Pipeline) Run(ctx context.Context, req Request) Outcome {
	requestID := uuid.NewString()
	log := p.log.With("request_id", requestID, "chat_id", req.ChatID)

	if !p.supported(req.URL) {
		log.Info("Rejected unsupported link", "url", req.URL)
		p.reply(ctx, log, req.ChatID, rejectionText)
		return OutcomeRejected
	}

	if err := p.transport.SendActivity(ctx, req.ChatID, ActivityTyping); err != nil {
		log.Debug("Failed to send typing activity", "error", err)
	}

	info, err := p.extractor.Probe(ctx, req.URL)
	if err != nil {
		category := extractor.CategoryFromError(err)
		log.Error("Probe failed", "url", req.URL, "category", category, "error", err)
		if category == extractor.ErrorExtraction {
			p.reply(ctx, log, req.ChatID, policyText)
		} else {
			p.reply(ctx, log, req.ChatID, genericText)
		}
		return OutcomeFailed
	}

	log.Info("Probe succeeded", "title", info.Title, "duration_seconds", info.DurationSeconds)

	progress, hasProgress := p.notifyProgress(ctx, log, req.ChatID, info)
	defer func() {
		// Best-effort: a stale progress message is cosmetic, never an error.
		if hasProgress {
			if err := p.transport.DeleteMessage(ctx, progress); err != nil {
				log.Debug("Failed to delete progress message", "error", err)
			}
		}
	}()

	downloadDir, err := os.MkdirTemp(p.tempRoot, "anydown-"+requestID+"-")
	if err != nil {
		log.Error("Failed to allocate download directory", "error", err)
		p.reply(ctx, log, req.ChatID, genericText)
		return OutcomeFailed
	}
	defer func() {
		if err := os.RemoveAll(downloadDir); err != nil {
			log.Error("Failed to remove download directory", "dir", downloadDir, "error", err)
		}
	}()

	result, err := p.extractor.Fetch(ctx, req.URL, downloadDir)
	if err != nil {
		log.Error("Fetch failed", "url", req.URL, "category", extractor.CategoryFromError(err), "error", err)
		p.reply(ctx, log, req.ChatID, genericText)
		return OutcomeFailed
	}

	if err := p.transport.SendActivity(ctx, req.ChatID, ActivityUploadVideo); err != nil {
		log.Debug("Failed to send upload activity", "error", err)
	}

	mode := delivery.Choose(result.SizeBytes)
	outcome := OutcomeStreamed
	switch mode {
	case delivery.Streamable:
		err = p.transport.SendVideo(ctx, req.ChatID, result.LocalPath, delivery.StreamCaption(info.Title))
	case delivery.AsDocument:
		outcome = OutcomeSentAsDocument
		err = p.transport.SendDocument(ctx, req.ChatID, result.LocalPath, delivery.DocumentCaption)
	}
	if err != nil {
		log.Error("Upload failed", "mode", string(mode), "size_bytes", result.SizeBytes, "error", err)
		p.reply(ctx, log, req.ChatID, genericText)
		return OutcomeFailed
	}

	log.Info("Delivered", "mode", string(mode), "size_bytes", result.SizeBytes, "title", info.Title)
	return outcome
}

// notifyProgress sends the downloading notice and keeps its handle for
// later deletion. Failure to notify is non-fatal.
func (p *Pipeline) notifyProgress(ctx context.Context, log *slog.Logger, chatID string, info extractor.MediaInfo) (MessageRef, bool) {
	ref, err := p.transport.SendProgress(ctx, chatID, progressText(info))
	if err != nil {
		log.Warn("Failed to send progress message", "error", err)
		return MessageRef{}, false
	}

	return ref, true
}

// reply sends a terminal user-facing message; send failures are logged only.
func (p *Pipeline) reply(ctx context.Context, log *slog.Logger, chatID string, text string) {
	if err := p.transport.SendText(ctx, chatID, text); err != nil {
		log.Warn("Failed to send reply", "error", err)
	}
}

// progressText composes the downloading notice with duration in whole minutes.
func progressText(info extractor.MediaInfo) string {
	return fmt.Sprintf("⏳ Downloading: %s\n⏱ Duration: %d minutes", info.Title, info.DurationSeconds/60)
}
