// Package pipeline drives a build: subjects in, one validated document and
// one metadata record out per subject.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/player-dossier/internal/dossier"
	"github.com/JakeFAU/player-dossier/internal/metrics"
	"github.com/JakeFAU/player-dossier/internal/render"
)

const (
	pdfContentType  = "application/pdf"
	jpegContentType = "image/jpeg"
	imageDir        = "images"
	tracerName      = "github.com/JakeFAU/player-dossier/internal/pipeline"
)

// Resolver turns a subject into a merged profile.
type Resolver interface {
	Resolve(ctx context.Context, subject dossier.Subject) (dossier.Profile, error)
}

// Renderer turns a document into a validated PDF.
type Renderer interface {
	Render(doc render.Document) (render.Result, error)
}

// ArtifactStore is the primary output location. Resolve maps an object path
// to the filesystem path recorded in metadata.
type ArtifactStore interface {
	dossier.BlobStore
	Resolve(path string) (string, error)
}

// Config controls Runner behavior.
type Config struct {
	// Topic receives one ProfileBuilt event per document; empty disables
	// publishing.
	Topic string
	// ImageCDN is a printf pattern for the fallback portrait URL; empty
	// disables the fallback.
	ImageCDN string
	// SkipImages disables portrait downloads.
	SkipImages bool
	// MetricsFile, when set, receives a Prometheus textfile dump after the
	// run.
	MetricsFile string
}

// ProfileBuilt is published after a document and its record are written.
type ProfileBuilt struct {
	RunID       string    `json:"run_id"`
	Name        string    `json:"name"`
	PDFPath     string    `json:"pdf_path"`
	MirrorURI   string    `json:"mirror_uri,omitempty"`
	Pages       int       `json:"pages"`
	ImageSHA256 string    `json:"image_sha256,omitempty"`
	Warnings    []string  `json:"warnings,omitempty"`
	BuiltAt     time.Time `json:"built_at"`
}

// Summary reports the outcome of a run.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Records   []dossier.Record
}

// Runner executes builds one subject at a time.
type Runner struct {
	resolver  Resolver
	renderer  Renderer
	fetcher   dossier.Fetcher
	artifacts ArtifactStore
	mirror    dossier.BlobStore
	metadata  dossier.MetadataStore
	publisher dossier.Publisher
	hasher    dossier.Hasher
	ids       dossier.IDGenerator
	clock     dossier.Clock
	out       io.Writer
	cfg       Config
	logger    *zap.Logger
	tracer    trace.Tracer
}

// New constructs a Runner. mirror and publisher may be nil.
func New(
	resolver Resolver,
	renderer Renderer,
	fetcher dossier.Fetcher,
	artifacts ArtifactStore,
	mirror dossier.BlobStore,
	metadata dossier.MetadataStore,
	publisher dossier.Publisher,
	hasher dossier.Hasher,
	ids dossier.IDGenerator,
	clock dossier.Clock,
	out io.Writer,
	cfg Config,
	logger *zap.Logger,
) *Runner {
	metrics.Init()
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	return &Runner{
		resolver:  resolver,
		renderer:  renderer,
		fetcher:   fetcher,
		artifacts: artifacts,
		mirror:    mirror,
		metadata:  metadata,
		publisher: publisher,
		hasher:    hasher,
		ids:       ids,
		clock:     clock,
		out:       out,
		cfg:       cfg,
		logger:    logger,
		tracer:    otel.Tracer(tracerName),
	}
}

// Run builds every subject in order. A failed subject is reported and
// skipped. The metadata snapshot is written once at the end, and only when
// at least one subject succeeded. Cancellation stops the run between
// subjects; records built so far are still persisted.
func (r *Runner) Run(ctx context.Context, subjects []dossier.Subject) (Summary, error) {
	if len(subjects) == 0 {
		return Summary{}, dossier.ErrNoSubjects
	}
	runID, err := r.ids.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("run id: %w", err)
	}
	summary := Summary{RunID: runID, Total: len(subjects)}
	logger := r.logger.With(zap.String("run_id", runID))

	prior, err := r.metadata.Load(ctx)
	if err != nil {
		var conflict *dossier.PersistenceConflict
		if !errors.As(err, &conflict) {
			return summary, fmt.Errorf("load metadata: %w", err)
		}
		logger.Warn("existing metadata unreadable; starting from empty", zap.Error(err))
	}

	var runErr error
	for i, subject := range subjects {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		record, err := r.buildOne(ctx, runID, i+1, len(subjects), subject, prior)
		if err != nil {
			summary.Failed++
			metrics.ObserveProfile("error")
			fmt.Fprintf(r.out, "[%d/%d] ERROR %s: %v\n", i+1, len(subjects), subject.Name, err)
			logger.Error("profile failed", zap.String("subject", subject.Name), zap.Error(err))
			continue
		}
		summary.Succeeded++
		summary.Records = append(summary.Records, record)
		metrics.ObserveProfile("ok")
		fmt.Fprintf(r.out, "[%d/%d] OK %s -> %s\n", i+1, len(subjects), record.Name, record.PDFPath)
	}

	if summary.Succeeded == 0 {
		fmt.Fprintln(r.out, "No profiles were generated; keeping existing metadata.")
	} else if err := r.metadata.Upsert(context.WithoutCancel(ctx), summary.Records); err != nil {
		return summary, fmt.Errorf("save metadata: %w", err)
	}

	if r.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(r.cfg.MetricsFile); err != nil {
			logger.Warn("metrics textfile not written", zap.Error(err))
		}
	}
	logger.Info("run finished",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
	)
	return summary, runErr
}

func (r *Runner) buildOne(
	ctx context.Context,
	runID string,
	index, total int,
	subject dossier.Subject,
	prior map[string]dossier.Record,
) (record dossier.Record, err error) {
	ctx, span := r.tracer.Start(ctx, "pipeline.profile",
		trace.WithAttributes(attribute.String("subject", subject.Name), attribute.String("run_id", runID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	profile, err := r.resolver.Resolve(ctx, subject)
	if err != nil {
		return dossier.Record{}, err
	}
	profile.RetrievedAt = retrievedAt(profile, r.clock.Now())
	warnings := make([]string, 0, len(profile.Warnings))
	for _, w := range profile.Warnings {
		warnings = append(warnings, w.Error())
		fmt.Fprintf(r.out, "[%d/%d] WARN %s: %v\n", index, total, subject.Name, w)
	}

	safe := SafeName(profile.Name)
	if safe == "" {
		return dossier.Record{}, fmt.Errorf("name %q has no usable file name", profile.Name)
	}

	image := r.portrait(ctx, &profile, safe, prior[profile.Name])

	result, err := r.renderer.Render(BuildDocument(profile, image))
	if err != nil {
		return dossier.Record{}, fmt.Errorf("render: %w", err)
	}
	span.SetAttributes(attribute.Int("pages", result.Pages))

	pdfObject := safe + ".pdf"
	if _, err := r.artifacts.PutObject(ctx, pdfObject, pdfContentType, bytes.NewReader(result.PDF)); err != nil {
		return dossier.Record{}, fmt.Errorf("write pdf: %w", err)
	}
	pdfPath, err := r.artifacts.Resolve(pdfObject)
	if err != nil {
		return dossier.Record{}, fmt.Errorf("write pdf: %w", err)
	}

	record = dossier.NewRecord(profile, pdfPath)
	record.RunID = runID
	if image != nil {
		if record.ImageSHA256, err = r.hasher.Hash(image); err != nil {
			return dossier.Record{}, fmt.Errorf("hash image: %w", err)
		}
	}

	mirrorURI := r.mirrorArtifacts(ctx, pdfObject, result.PDF, safe, image)
	r.publish(ctx, ProfileBuilt{
		RunID:       runID,
		Name:        record.Name,
		PDFPath:     pdfPath,
		MirrorURI:   mirrorURI,
		Pages:       result.Pages,
		ImageSHA256: record.ImageSHA256,
		Warnings:    warnings,
		BuiltAt:     r.clock.Now(),
	})
	return record, nil
}

// portrait returns JPEG bytes for the profile image, or nil. A portrait
// recorded by an earlier run is reused when its file is still readable.
// Failures are logged and the document is drawn without an image.
func (r *Runner) portrait(ctx context.Context, profile *dossier.Profile, safe string, prior dossier.Record) []byte {
	if prior.ImagePath != "" {
		if data, err := os.ReadFile(prior.ImagePath); err == nil {
			profile.ImagePath = prior.ImagePath
			return data
		}
	}
	if r.cfg.SkipImages {
		return nil
	}
	data, err := r.downloadImage(ctx, imageCandidates(profile.ImageURL, profile.Name, r.cfg.ImageCDN))
	if err != nil {
		r.logger.Info("no portrait", zap.String("subject", profile.Name), zap.Error(err))
		return nil
	}
	object := imageDir + "/" + safe + ".jpg"
	if _, err := r.artifacts.PutObject(ctx, object, jpegContentType, bytes.NewReader(data)); err != nil {
		r.logger.Warn("portrait not saved", zap.String("subject", profile.Name), zap.Error(err))
		return data
	}
	if path, err := r.artifacts.Resolve(object); err == nil {
		profile.ImagePath = path
	}
	return data
}

// mirrorArtifacts copies the document and portrait to the mirror store and
// returns the document URI there. Mirror failures never fail the subject.
func (r *Runner) mirrorArtifacts(ctx context.Context, pdfObject string, pdf []byte, safe string, image []byte) string {
	if r.mirror == nil {
		return ""
	}
	uri, err := r.mirror.PutObject(ctx, pdfObject, pdfContentType, bytes.NewReader(pdf))
	if err != nil {
		r.logger.Warn("mirror upload failed", zap.String("object", pdfObject), zap.Error(err))
		return ""
	}
	if image != nil {
		object := imageDir + "/" + safe + ".jpg"
		if _, err := r.mirror.PutObject(ctx, object, jpegContentType, bytes.NewReader(image)); err != nil {
			r.logger.Warn("mirror upload failed", zap.String("object", object), zap.Error(err))
		}
	}
	return uri
}

func (r *Runner) publish(ctx context.Context, event ProfileBuilt) {
	if r.cfg.Topic == "" || r.publisher == nil {
		return
	}
	id, err := r.publisher.Publish(ctx, r.cfg.Topic, event)
	if err != nil {
		r.logger.Warn("publish failed", zap.String("subject", event.Name), zap.Error(err))
		return
	}
	r.logger.Info("profile published",
		zap.String("subject", event.Name),
		zap.String("message_id", id),
		zap.String("pdf_path", event.PDFPath),
	)
}
