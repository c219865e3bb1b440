package chat

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feichai0017/document-chat/internal/models"
	"github.com/feichai0017/document-chat/internal/utils/validator"
	"github.com/feichai0017/document-chat/pkg/logger"
	"github.com/feichai0017/document-chat/pkg/queue"
	"github.com/feichai0017/document-chat/pkg/storage"
	"github.com/feichai0017/document-chat/pkg/worker"
)

const (
	StageValidate = "validate"
	StageStage    = "stage"
	StageExtract  = "extract"
	StageLayout   = "layout"
	StageGenerate = "generate"
)

type ServiceConfig struct {
	SummaryLength       int
	BackgroundReextract bool
	StoragePrefix       string
}

// Analysis is everything the pipeline learned about one document.
type Analysis struct {
	Extraction   models.Extraction
	ImageBearing bool
	Labels       []models.StructuredLabel
}

type ChatService struct {
	deps      Dependencies
	storage   storage.Storage
	pool      *worker.Pool
	validator *validator.DocumentValidator
	scheduler Scheduler
	logger    logger.Logger
	config    *ServiceConfig
}

func NewService(
	deps Dependencies,
	store storage.Storage,
	pool *worker.Pool,
	v *validator.DocumentValidator,
	log logger.Logger,
	cfg *ServiceConfig,
) *ChatService {
	if cfg == nil {
		cfg = &ServiceConfig{
			SummaryLength:       DefaultSummaryLength,
			BackgroundReextract: true,
			StoragePrefix:       "uploads/",
		}
	}
	s := &ChatService{
		deps:      deps,
		storage:   store,
		pool:      pool,
		validator: v,
		logger:    log,
		config:    cfg,
	}
	s.scheduler = NewInlineScheduler(s, log)
	return s
}

// UseScheduler replaces the default in-process scheduler.
func (s *ChatService) UseScheduler(sched Scheduler) {
	s.scheduler = sched
}

func (s *ChatService) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	log := logger.FromContext(ctx, s.logger)

	var (
		docContext string
		held       *lease
	)
	if req.Upload != nil {
		doc, dropLocal, err := s.stage(ctx, req.Upload)
		if err != nil {
			return nil, err
		}
		log = log.With(logger.String("documentId", doc.ID), logger.String("format", doc.Format.String()))

		held = s.newLease(doc, dropLocal, log)
		analysis, err := s.analyzeForeground(ctx, held)
		if err != nil {
			return nil, err
		}
		docContext = BuildContext(analysis, s.config.SummaryLength)
	}

	prompt := BuildPrompt(docContext, req.Question)
	job := worker.Submit(ctx, s.pool, func(jobCtx context.Context) (string, error) {
		return s.deps.LLM.Complete(jobCtx, prompt)
	})
	answer, err := job.Wait(ctx)
	if held != nil {
		handoffAfter(job.Done(), held)
	}
	if err != nil {
		return nil, &models.PipelineError{Stage: StageGenerate, Err: err}
	}
	return &ChatResponse{Answer: answer}, nil
}

// handoffAfter schedules the background pass once the answer job is done.
func handoffAfter(done <-chan struct{}, l *lease) {
	select {
	case <-done:
		l.Handoff()
	default:
		// caller left while the model was still answering
		go func() {
			<-done
			l.Handoff()
		}()
	}
}

// analyzeForeground runs the pipeline for the request. On failure the
// document is released at once; on success the caller keeps the lease and
// hands it off after generation. When ctx ends first the jobs finish
// detached and the document is handed off or released from there.
func (s *ChatService) analyzeForeground(ctx context.Context, lease *lease) (*Analysis, error) {
	doc, log := lease.doc, lease.log

	extractJob := worker.Submit(ctx, s.pool, func(jobCtx context.Context) (*models.Extraction, error) {
		return s.extract(jobCtx, doc)
	})
	var layoutJob *worker.Future[[]models.StructuredLabel]
	if doc.Format.IsImageBearing() {
		layoutJob = worker.Submit(ctx, s.pool, func(jobCtx context.Context) ([]models.StructuredLabel, error) {
			return s.classifyLayout(jobCtx, doc)
		})
	}

	finish := func() (*Analysis, error) {
		extraction, err := extractJob.Result()
		if err != nil {
			layoutResult(layoutJob)
			return nil, &models.PipelineError{Stage: StageExtract, Err: err}
		}
		a := &Analysis{Extraction: *extraction, ImageBearing: layoutJob != nil}
		if layoutJob != nil {
			labels, err := layoutJob.Result()
			if err != nil {
				return nil, &models.PipelineError{Stage: StageLayout, Err: err}
			}
			a.Labels = labels
		}
		return a, nil
	}

	if err := waitAll(ctx, extractJob, layoutJob); err != nil {
		// client went away; the jobs still own the file
		log.Warn("Request cancelled during extraction", logger.Error(err))
		go func() {
			if _, err := finish(); err != nil {
				log.Error("Detached extraction failed", logger.Error(err))
				lease.Release()
				return
			}
			lease.Handoff()
		}()
		return nil, &models.PipelineError{Stage: StageExtract, Err: err}
	}

	a, err := finish()
	if err != nil {
		log.Error("Document pipeline failed", logger.Error(err))
		lease.Release()
		return nil, err
	}
	return a, nil
}

func layoutResult(f *worker.Future[[]models.StructuredLabel]) {
	if f != nil {
		f.Result()
	}
}

func waitAll(ctx context.Context, extract *worker.Future[*models.Extraction], layout *worker.Future[[]models.StructuredLabel]) error {
	select {
	case <-extract.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if layout != nil {
		select {
		case <-layout.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// extract runs Extract, Normalize and Recognize for doc.
func (s *ChatService) extract(ctx context.Context, doc *models.DocumentHandle) (*models.Extraction, error) {
	text, err := s.deps.Extractor.Extract(ctx, doc)
	if err != nil {
		return nil, err
	}
	normalized := s.deps.Normalizer.Normalize(text)
	entities, err := s.deps.Recognizer.Recognize(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("recognize entities: %w", err)
	}
	return &models.Extraction{Text: text, Normalized: normalized, Entities: entities}, nil
}

func (s *ChatService) classifyLayout(ctx context.Context, doc *models.DocumentHandle) ([]models.StructuredLabel, error) {
	in, err := s.deps.Layout.Prepare(ctx, doc)
	if err != nil {
		return nil, &models.ExtractionError{DocumentID: doc.ID, Format: doc.Format, Err: fmt.Errorf("prepare layout: %w", err)}
	}
	labels, err := s.deps.Classifier.Classify(ctx, in)
	if err != nil {
		return nil, &models.ExtractionError{DocumentID: doc.ID, Format: doc.Format, Err: fmt.Errorf("classify layout: %w", err)}
	}
	return labels, nil
}

// stage validates the upload, stores it and makes it locally readable.
// The returned func removes any temporary local copy.
func (s *ChatService) stage(ctx context.Context, up *Upload) (*models.DocumentHandle, func() error, error) {
	result, err := s.validator.ValidateFile(up.File, up.Filename, up.Size)
	if err != nil {
		return nil, nil, &models.PipelineError{Stage: StageValidate, Err: err}
	}
	info := result.FileInfo

	id := uuid.NewString()
	key := path.Join(s.config.StoragePrefix, id+info.Extension)
	if _, err := s.storage.Store(ctx, up.File, key); err != nil {
		return nil, nil, &models.PipelineError{Stage: StageStage, Err: err}
	}

	doc := &models.DocumentHandle{
		ID:         id,
		Filename:   up.Filename,
		Format:     info.Format,
		StorageKey: key,
		Size:       info.Size,
		Hash:       info.Hash,
		MimeType:   info.MimeType,
		CreatedAt:  time.Now(),
	}

	localPath, dropLocal, err := storage.Materialize(ctx, s.storage, key)
	if err != nil {
		if delErr := s.storage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			s.logger.Error("Failed to delete staged document", logger.String("key", key), logger.Error(delErr))
		}
		return nil, nil, &models.PipelineError{Stage: StageStage, Err: err}
	}
	return doc.WithPath(localPath), dropLocal, nil
}

// HandleCleanup is the background pass: optionally re-extract the document
// for its side effects, then delete it. Deletion runs even when
// re-extraction fails. Only a failed deletion is returned, so a queued
// pass is retried only while the document still exists.
func (s *ChatService) HandleCleanup(ctx context.Context, p *queue.CleanupPayload) error {
	log := s.logger.With(logger.String("documentId", p.DocumentID), logger.String("key", p.StorageKey))

	if p.Reextract {
		if err := s.reextract(ctx, p); err != nil {
			log.Error("Background extraction failed", logger.Error(err))
		} else {
			log.Info("Background extraction finished")
		}
	}

	deleteErr := s.storage.Delete(ctx, p.StorageKey)
	if deleteErr != nil {
		log.Error("Failed to delete document", logger.Error(deleteErr))
	} else {
		log.Info("Document deleted")
	}
	return deleteErr
}

func (s *ChatService) reextract(ctx context.Context, p *queue.CleanupPayload) error {
	localPath, dropLocal, err := storage.Materialize(ctx, s.storage, p.StorageKey)
	if err != nil {
		return err
	}
	defer dropLocal()

	doc := &models.DocumentHandle{
		ID:         p.DocumentID,
		Filename:   p.Filename,
		Format:     models.Format(p.Format),
		StorageKey: p.StorageKey,
		Path:       localPath,
	}
	_, err = worker.Submit(ctx, s.pool, func(jobCtx context.Context) (*models.Extraction, error) {
		return s.extract(jobCtx, doc)
	}).Result()
	return err
}

// lease guarantees a staged document is either released or handed to the
// background pass, exactly once.
type lease struct {
	svc   *ChatService
	doc   *models.DocumentHandle
	local func() error
	log   logger.Logger
	once  sync.Once
}

func (s *ChatService) newLease(doc *models.DocumentHandle, dropLocal func() error, log logger.Logger) *lease {
	return &lease{svc: s, doc: doc, local: dropLocal, log: log}
}

// Release drops the local copy and deletes the stored document now.
func (l *lease) Release() {
	l.once.Do(func() {
		l.dropLocal()
		if err := l.svc.storage.Delete(context.Background(), l.doc.StorageKey); err != nil {
			l.log.Error("Failed to release document", logger.Error(err))
			return
		}
		l.log.Info("Document released")
	})
}

// Handoff drops the local copy and schedules the background pass, which
// deletes the stored document. The document is deleted directly when
// scheduling fails.
func (l *lease) Handoff() {
	l.once.Do(func() {
		l.dropLocal()
		p := &queue.CleanupPayload{
			DocumentID: l.doc.ID,
			Filename:   l.doc.Filename,
			Format:     string(l.doc.Format),
			StorageKey: l.doc.StorageKey,
			Reextract:  l.svc.config.BackgroundReextract,
		}
		if err := l.svc.scheduler.Schedule(context.Background(), p); err != nil {
			l.log.Error("Failed to schedule background pass", logger.Error(err))
			if err := l.svc.storage.Delete(context.Background(), l.doc.StorageKey); err != nil {
				l.log.Error("Failed to release document", logger.Error(err))
			}
		}
	})
}

func (l *lease) dropLocal() {
	if l.local == nil {
		return
	}
	if err := l.local(); err != nil {
		l.log.Warn("Failed to remove local copy", logger.String("path", l.doc.Path), logger.Error(err))
	}
}

// Drain waits for background passes and pool jobs still in flight.
func (s *ChatService) Drain(ctx context.Context) error {
	if w, ok := s.scheduler.(interface{ Wait(context.Context) error }); ok {
		if err := w.Wait(ctx); err != nil {
			return err
		}
	}
	return s.pool.Shutdown(ctx)
}
