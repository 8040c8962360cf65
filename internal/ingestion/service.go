package ingestion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rpattn/custimport/internal/analyzer"
	"github.com/rpattn/custimport/internal/auth"
	"github.com/rpattn/custimport/internal/customerloader"
	"github.com/rpattn/custimport/internal/dedupe"
	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/mapping"
	"github.com/rpattn/custimport/internal/metrics"
	"github.com/rpattn/custimport/internal/repository"
	"github.com/rpattn/custimport/internal/session"
	"github.com/rpattn/custimport/internal/spreadsheet"
	"github.com/rpattn/custimport/internal/vocabulary"
)

const (
	// DefaultPreviewRows is how many annotated rows a preview returns.
	DefaultPreviewRows = 100

	sampleValues = 3
)

// Options configure the import service.
type Options struct {
	MaxUploadBytes int64
	PreviewRows    int
	Vocabularies   map[string][]vocabulary.Entry
	Vocabulary     vocabulary.Config
	Dedupe         dedupe.Config
}

// Service runs the preview → execute import workflow.
type Service struct {
	store     repository.Store
	sessions  session.Store
	mapper    *mapping.Mapper
	processor *Processor
	vocab     *vocabulary.Matcher
	commit    *CommitEngine
	opts      Options
	logger    logrus.FieldLogger
}

// NewService creates a new import service.
func NewService(store repository.Store, sessions session.Store, opts Options, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = spreadsheet.DefaultMaxBytes
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = DefaultPreviewRows
	}
	if opts.Vocabularies == nil {
		opts.Vocabularies = vocabulary.Defaults()
	}
	vocab := vocabulary.NewMatcher(opts.Vocabularies, opts.Vocabulary)
	return &Service{
		store:     store,
		sessions:  sessions,
		mapper:    mapping.NewMapper(store.Profiles(), store.Signatures()),
		processor: NewProcessor(),
		vocab:     vocab,
		commit:    NewCommitEngine(store, vocab, opts.Dedupe, logger),
		opts:      opts,
		logger:    logger,
	}
}

// PreviewRequest describes an uploaded file.
type PreviewRequest struct {
	TenantID  uuid.UUID
	FileName  string
	Payload   []byte
	Sheet     string
	HeaderRow *int
}

// PreviewColumn summarises one source column and its suggested target.
type PreviewColumn struct {
	Index      int            `json:"index"`
	Header     string         `json:"header"`
	Target     domain.Field   `json:"target,omitempty"`
	Confidence float64        `json:"confidence"`
	Source     mapping.Source `json:"source"`
	Samples    []string       `json:"samples"`
}

// PreviewResult is returned to the reviewer before anything is written.
type PreviewResult struct {
	SessionID            uuid.UUID                     `json:"sessionId"`
	BatchID              uuid.UUID                     `json:"batchId"`
	FileName             string                        `json:"fileName"`
	Sheet                string                        `json:"sheet,omitempty"`
	Sheets               []string                      `json:"sheets,omitempty"`
	HeaderRowIndex       int                           `json:"headerRowIndex"`
	HeaderCandidates     []spreadsheet.HeaderCandidate `json:"headerCandidates"`
	Signature            string                        `json:"signature"`
	Columns              []PreviewColumn               `json:"columns"`
	MappingIssues        []domain.ValidationIssue      `json:"mappingIssues,omitempty"`
	RequiresRemapping    bool                          `json:"requiresRemapping"`
	FormatChangeDetected bool                          `json:"formatChangeDetected"`
	Summary              domain.Summary                `json:"summary"`
	Quality              domain.QualityReport          `json:"quality"`
	Rows                 []domain.StagingRow           `json:"rows"`
	Proposals            analyzer.Proposals            `json:"proposals"`
	Warnings             []string                      `json:"warnings,omitempty"`
	ExpiresAt            time.Time                     `json:"expiresAt"`
}

// ConfirmMappingRequest replaces column targets on a live session.
type ConfirmMappingRequest struct {
	TenantID  uuid.UUID
	SessionID uuid.UUID
	Mapping   map[string]domain.Field
}

// ExecuteRequest commits a staged session.
type ExecuteRequest struct {
	TenantID          uuid.UUID
	SessionID         uuid.UUID
	CategoryOverrides map[string]string
	Geocode           bool
	ConfirmMapping    bool
	Mapping           map[string]domain.Field
	DuplicateStrategy DuplicateStrategy
}

// ExecuteResult reports the commit outcome.
type ExecuteResult struct {
	BatchID       uuid.UUID           `json:"batchId"`
	Status        domain.BatchStatus  `json:"status"`
	Created       int                 `json:"created"`
	Updated       int                 `json:"updated"`
	Skipped       int                 `json:"skipped"`
	Failed        int                 `json:"failed"`
	RowErrors     []RowError          `json:"rowErrors"`
	Rows          []domain.StagingRow `json:"rows,omitempty"`
	GeocodingNote string              `json:"geocodingNote,omitempty"`
}

// Preview parses and stages an upload. Nothing is written to the customer store.
func (s *Service) Preview(ctx context.Context, req PreviewRequest) (result PreviewResult, err error) {
	start := time.Now()
	var rows []domain.StagingRow
	defer func() { metrics.ObservePreview(rows, err, time.Since(start)) }()

	if err := auth.EnforceTenantScope(ctx, req.TenantID); err != nil {
		return PreviewResult{}, err
	}
	logger := s.logger.WithFields(logrus.Fields{"tenant_id": req.TenantID, "file": req.FileName})

	sum := sha256.Sum256(req.Payload)
	batch := domain.NewImportBatch(req.TenantID, req.FileName, int64(len(req.Payload)), hex.EncodeToString(sum[:]))
	batch, err = batch.TransitionTo(domain.BatchParsing)
	if err != nil {
		return PreviewResult{}, err
	}
	batch, err = s.store.Batches().Create(ctx, batch)
	if err != nil {
		return PreviewResult{}, fmt.Errorf("failed to create import batch: %w", err)
	}
	logger = logger.WithField("batch_id", batch.ID)

	table, err := spreadsheet.Parse(req.FileName, req.Payload, spreadsheet.Options{
		MaxBytes:  s.opts.MaxUploadBytes,
		Sheet:     req.Sheet,
		HeaderRow: req.HeaderRow,
	})
	if err != nil {
		s.failBatch(ctx, batch, logger, err)
		return PreviewResult{}, err
	}
	batch.SheetName = table.Sheet
	batch.HeaderRowIndex = table.HeaderRowIndex
	if batch, err = batch.Advance(domain.BatchMapping); err != nil {
		return PreviewResult{}, err
	}

	res, err := s.mapper.Resolve(ctx, req.TenantID, table.Headers)
	if err != nil {
		s.failBatch(ctx, batch, logger, err)
		return PreviewResult{}, err
	}
	batch = batch.WithMapping(res.Signature, res.RequiresRemapping, res.FormatChangeDetected)

	rows, err = s.stage(ctx, req.TenantID, res, tableInputs(table))
	if err != nil {
		s.failBatch(ctx, batch, logger, err)
		return PreviewResult{}, err
	}
	batch = batch.WithRows(rows)
	if !res.RequiresRemapping {
		if batch, err = batch.Advance(domain.BatchValidated); err != nil {
			return PreviewResult{}, err
		}
	}
	if batch, err = s.store.Batches().Update(ctx, batch); err != nil {
		return PreviewResult{}, fmt.Errorf("failed to update import batch: %w", err)
	}

	stored, err := s.sessions.Put(ctx, session.Session{
		TenantID:       req.TenantID,
		BatchID:        batch.ID,
		FileName:       req.FileName,
		ContentHash:    batch.ContentHash,
		Sheet:          table.Sheet,
		HeaderRowIndex: table.HeaderRowIndex,
		Headers:        table.Headers,
		Resolution:     res,
		Rows:           rows,
	})
	if err != nil {
		return PreviewResult{}, fmt.Errorf("failed to store import session: %w", err)
	}

	result = s.previewResult(stored, batch)
	result.Sheets = table.Sheets
	result.HeaderCandidates = table.HeaderCandidates
	if warning, err := s.previouslyImported(ctx, batch); err != nil {
		return PreviewResult{}, err
	} else if warning != "" {
		result.Warnings = append(result.Warnings, warning)
	}

	logger.WithFields(logrus.Fields{
		"session_id":         stored.ID,
		"rows":               len(rows),
		"requires_remapping": res.RequiresRemapping,
	}).Info("import previewed")
	return result, nil
}

// ConfirmMapping applies a user mapping to a live session and re-stages its rows from the
// stored raw values.
func (s *Service) ConfirmMapping(ctx context.Context, req ConfirmMappingRequest) (PreviewResult, error) {
	if err := auth.EnforceTenantScope(ctx, req.TenantID); err != nil {
		return PreviewResult{}, err
	}
	sess, err := s.sessions.Get(ctx, req.TenantID, req.SessionID)
	if err != nil {
		return PreviewResult{}, err
	}
	sess, err = s.remap(ctx, sess, req.Mapping)
	if err != nil {
		return PreviewResult{}, err
	}

	batch, err := s.store.Batches().GetByID(ctx, req.TenantID, sess.BatchID)
	if err != nil {
		return PreviewResult{}, fmt.Errorf("failed to load import batch: %w", err)
	}
	batch, err = s.confirmBatch(batch, sess)
	if err != nil {
		return PreviewResult{}, err
	}

	// an Execute that consumed the session meanwhile wins; the batch is left alone
	stored, err := s.sessions.Replace(ctx, sess)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) || errors.Is(err, session.ErrSessionForbidden) {
			return PreviewResult{}, err
		}
		return PreviewResult{}, fmt.Errorf("failed to store import session: %w", err)
	}
	if batch, err = s.store.Batches().Update(ctx, batch); err != nil {
		return PreviewResult{}, fmt.Errorf("failed to update import batch: %w", err)
	}
	return s.previewResult(stored, batch), nil
}

// Execute commits a staged session. The session is consumed before any write so a second
// call for the same id fails with session.ErrSessionNotFound.
func (s *Service) Execute(ctx context.Context, req ExecuteRequest) (result ExecuteResult, err error) {
	start := time.Now()
	var committed []domain.StagingRow
	defer func() {
		if !errors.Is(err, session.ErrSessionNotFound) && !errors.Is(err, ErrInvalidRequest) {
			metrics.ObserveCommit(committed, err, time.Since(start))
		}
	}()

	if err := auth.EnforceTenantScope(ctx, req.TenantID); err != nil {
		return ExecuteResult{}, err
	}
	switch req.DuplicateStrategy {
	case "", DuplicateUpdate, DuplicateSkip:
	default:
		return ExecuteResult{}, invalidRequest("unknown duplicate strategy %q", req.DuplicateStrategy)
	}
	if err := s.commit.ValidateOverrides(req.CategoryOverrides); err != nil {
		return ExecuteResult{}, err
	}

	sess, err := s.sessions.Get(ctx, req.TenantID, req.SessionID)
	if err != nil {
		return ExecuteResult{}, err
	}
	if len(req.Mapping) > 0 {
		if sess, err = s.remap(ctx, sess, req.Mapping); err != nil {
			return ExecuteResult{}, err
		}
	}
	if sess.Resolution.RequiresRemapping && !sess.MappingConfirmed && !req.ConfirmMapping {
		return ExecuteResult{}, domain.ErrRemappingRequired
	}
	confirmed := sess.MappingConfirmed || req.ConfirmMapping

	staged, err := s.sessions.Take(ctx, req.TenantID, req.SessionID)
	if err != nil {
		return ExecuteResult{}, err
	}
	if len(req.Mapping) == 0 {
		sess = staged
	}
	logger := s.logger.WithFields(logrus.Fields{
		"tenant_id":  req.TenantID,
		"batch_id":   sess.BatchID,
		"session_id": sess.ID,
	})

	batch, err := s.store.Batches().GetByID(ctx, req.TenantID, sess.BatchID)
	if err != nil {
		return ExecuteResult{}, fmt.Errorf("failed to load import batch: %w", err)
	}
	if batch.Status == domain.BatchMapping || batch.Status == domain.BatchMapped {
		sess.MappingConfirmed = confirmed
		if batch, err = s.confirmBatch(batch, sess); err != nil {
			return ExecuteResult{}, err
		}
	}
	if batch, err = batch.TransitionTo(domain.BatchCommitting); err != nil {
		return ExecuteResult{}, err
	}
	if batch, err = s.store.Batches().Update(ctx, batch); err != nil {
		return ExecuteResult{}, fmt.Errorf("failed to update import batch: %w", err)
	}

	outcome, err := s.commit.Commit(ctx, CommitRequest{
		TenantID:          req.TenantID,
		Batch:             batch,
		Rows:              sess.Rows,
		Resolution:        sess.Resolution,
		MappingConfirmed:  confirmed,
		CategoryOverrides: req.CategoryOverrides,
		DuplicateStrategy: req.DuplicateStrategy,
	})
	if err != nil {
		s.failBatch(ctx, batch, logger, err)
		return ExecuteResult{}, err
	}
	committed = outcome.Rows

	summary := outcome.Batch.Summary
	result = ExecuteResult{
		BatchID:   outcome.Batch.ID,
		Status:    outcome.Batch.Status,
		Created:   summary.Created,
		Updated:   summary.Updated,
		Skipped:   summary.Skipped,
		Failed:    summary.Failed,
		RowErrors: outcome.RowErrors,
		Rows:      outcome.Rows,
	}
	if result.RowErrors == nil {
		result.RowErrors = []RowError{}
	}
	if req.Geocode {
		result.GeocodingNote = geocodingNote(outcome.Rows)
	}
	return result, nil
}

// Cancel drops a staged session and marks its batch cancelled.
func (s *Service) Cancel(ctx context.Context, tenantID, sessionID uuid.UUID) error {
	if err := auth.EnforceTenantScope(ctx, tenantID); err != nil {
		return err
	}
	sess, err := s.sessions.Take(ctx, tenantID, sessionID)
	if err != nil {
		return err
	}
	batch, err := s.store.Batches().GetByID(ctx, tenantID, sess.BatchID)
	if err != nil {
		return fmt.Errorf("failed to load import batch: %w", err)
	}
	if batch, err = batch.TransitionTo(domain.BatchCancelled); err != nil {
		return err
	}
	if _, err := s.store.Batches().Update(ctx, batch); err != nil {
		return fmt.Errorf("failed to update import batch: %w", err)
	}
	s.logger.WithFields(logrus.Fields{"tenant_id": tenantID, "batch_id": batch.ID}).Info("import cancelled")
	return nil
}

// Batch returns the lifecycle record of an import.
func (s *Service) Batch(ctx context.Context, tenantID, batchID uuid.UUID) (domain.ImportBatch, error) {
	if err := auth.EnforceTenantScope(ctx, tenantID); err != nil {
		return domain.ImportBatch{}, err
	}
	return s.store.Batches().GetByID(ctx, tenantID, batchID)
}

// stage runs the row processor with a tenant scoped vocabulary and a batched
// external-reference lookup.
func (s *Service) stage(ctx context.Context, tenantID uuid.UUID, res mapping.Resolution, inputs []RowInput) ([]domain.StagingRow, error) {
	aliases, err := s.store.Aliases().List(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load vocabulary aliases: %w", err)
	}
	vocab := s.vocab.WithAliases(aliases)

	loader := customerloader.FromContext(ctx)
	if loader == nil || loader.TenantID() != tenantID {
		loader = customerloader.NewCustomerLoader(s.store.Customers(), tenantID)
	}
	if column, ok := res.Targets()[domain.FieldExternalRef]; ok {
		header := res.Columns[column].Header
		refs := make([]string, 0, len(inputs))
		for _, in := range inputs {
			refs = append(refs, in.Raw[header])
		}
		if err := loader.Prefetch(ctx, refs); err != nil {
			return nil, err
		}
	}
	detector := dedupe.NewDetector(s.store.Customers(), loader, s.opts.Dedupe)

	return s.processor.ProcessAll(ctx, tenantID, res, vocab, detector, inputs)
}

func (s *Service) remap(ctx context.Context, sess session.Session, overrides map[string]domain.Field) (session.Session, error) {
	res, err := mapping.ApplyOverrides(sess.Resolution, overrides)
	if err != nil {
		return session.Session{}, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	res.RequiresRemapping = false

	rows, err := s.stage(ctx, sess.TenantID, res, stagedInputs(sess.Rows))
	if err != nil {
		return session.Session{}, err
	}
	sess.Resolution = res
	sess.MappingConfirmed = true
	sess.Rows = rows
	return sess, nil
}

// confirmBatch moves a batch waiting on its mapping through to validated.
func (s *Service) confirmBatch(batch domain.ImportBatch, sess session.Session) (domain.ImportBatch, error) {
	batch = batch.WithMapping(sess.Resolution.Signature, false, batch.FormatChangeDetected).WithRows(sess.Rows)
	if batch.Status == domain.BatchValidated {
		return batch, nil
	}
	return batch.Advance(domain.BatchValidated)
}

func (s *Service) previewResult(sess session.Session, batch domain.ImportBatch) PreviewResult {
	summary, quality := domain.SummarizeRows(sess.Rows)
	preview := sess.Rows
	if len(preview) > s.opts.PreviewRows {
		preview = preview[:s.opts.PreviewRows]
	}

	columns := make([]PreviewColumn, len(sess.Resolution.Columns))
	var unmapped []analyzer.Column
	for i, col := range sess.Resolution.Columns {
		values := make([]string, 0, len(sess.Rows))
		for _, row := range sess.Rows {
			values = append(values, row.Raw[col.Header])
		}
		columns[i] = PreviewColumn{
			Index:      col.Index,
			Header:     col.Header,
			Target:     col.Target,
			Confidence: col.Confidence,
			Source:     col.Source,
			Samples:    samples(values),
		}
		if col.Target == "" {
			unmapped = append(unmapped, analyzer.Column{Header: col.Header, Values: values})
		}
	}

	var unmatched []domain.VocabularyMatch
	for _, row := range sess.Rows {
		for _, match := range row.VocabularyMatches {
			if match.Type == domain.VocabularyNone && strings.TrimSpace(match.Raw) != "" {
				unmatched = append(unmatched, match)
			}
		}
	}

	return PreviewResult{
		SessionID:            sess.ID,
		BatchID:              batch.ID,
		FileName:             sess.FileName,
		Sheet:                sess.Sheet,
		HeaderRowIndex:       sess.HeaderRowIndex,
		Signature:            sess.Resolution.Signature,
		Columns:              columns,
		MappingIssues:        sess.Resolution.Issues,
		RequiresRemapping:    sess.Resolution.RequiresRemapping && !sess.MappingConfirmed,
		FormatChangeDetected: sess.Resolution.FormatChangeDetected,
		Summary:              summary,
		Quality:              quality,
		Rows:                 preview,
		Proposals:            analyzer.Analyze(analyzer.Input{Columns: unmapped, Unmatched: unmatched}),
		ExpiresAt:            sess.ExpiresAt,
	}
}

func (s *Service) previouslyImported(ctx context.Context, batch domain.ImportBatch) (string, error) {
	previous, err := s.store.Batches().FindCommittedByHash(ctx, batch.TenantID, batch.ContentHash)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("failed to look up earlier imports: %w", err)
	}
	when := previous.UpdatedAt
	if previous.CommittedAt != nil {
		when = *previous.CommittedAt
	}
	return fmt.Sprintf("this file was already imported on %s (batch %s)", when.Format(time.RFC3339), previous.ID), nil
}

func (s *Service) failBatch(ctx context.Context, batch domain.ImportBatch, logger logrus.FieldLogger, cause error) {
	logger.WithError(cause).Warn("import batch failed")
	failed, err := batch.TransitionTo(domain.BatchFailed)
	if err != nil {
		return
	}
	if _, err := s.store.Batches().Update(ctx, failed); err != nil {
		logger.WithError(err).Error("failed to mark import batch failed")
	}
}

func samples(values []string) []string {
	out := make([]string, 0, sampleValues)
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		out = append(out, value)
		if len(out) == sampleValues {
			break
		}
	}
	return out
}

func geocodingNote(rows []domain.StagingRow) string {
	queued := 0
	for _, row := range rows {
		if row.FinalAction == domain.ActionCreated || row.FinalAction == domain.ActionUpdated {
			queued++
		}
	}
	return fmt.Sprintf("%d customers queued for geocoding; coordinates are filled in after import", queued)
}
