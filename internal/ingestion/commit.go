package ingestion

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rpattn/custimport/internal/customerloader"
	"github.com/rpattn/custimport/internal/dedupe"
	"github.com/rpattn/custimport/internal/domain"
	"github.com/rpattn/custimport/internal/mapping"
	"github.com/rpattn/custimport/internal/repository"
	"github.com/rpattn/custimport/internal/textsim"
	"github.com/rpattn/custimport/internal/vocabulary"
)

// DuplicateStrategy decides what happens to rows matching an existing customer.
type DuplicateStrategy string

const (
	DuplicateUpdate DuplicateStrategy = "update"
	DuplicateSkip   DuplicateStrategy = "skip"
)

// CommitRequest carries everything the engine writes for one batch.
type CommitRequest struct {
	TenantID          uuid.UUID
	Batch             domain.ImportBatch
	Rows              []domain.StagingRow
	Resolution        mapping.Resolution
	MappingConfirmed  bool
	CategoryOverrides map[string]string
	DuplicateStrategy DuplicateStrategy
}

// CommitResult is the per-row outcome of a commit.
type CommitResult struct {
	Batch     domain.ImportBatch
	Rows      []domain.StagingRow
	RowErrors []RowError
	Profile   domain.MappingProfile
	Aliases   []domain.VocabularyAlias
}

// CommitEngine writes staged rows to the customer store. The batch runs in one
// transaction and every row in its own savepoint: a failing row rolls back only its
// own statements and the remaining rows continue.
type CommitEngine struct {
	uow       repository.UnitOfWork
	vocab     *vocabulary.Matcher
	dedupeCfg dedupe.Config
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewCommitEngine wires an engine to a unit of work.
func NewCommitEngine(uow repository.UnitOfWork, vocab *vocabulary.Matcher, dedupeCfg dedupe.Config, logger logrus.FieldLogger) *CommitEngine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CommitEngine{
		uow:       uow,
		vocab:     vocab,
		dedupeCfg: dedupeCfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ValidateOverrides rejects override targets that are not canonical in any vocabulary.
func (e *CommitEngine) ValidateOverrides(overrides map[string]string) error {
	raws := make([]string, 0, len(overrides))
	for raw := range overrides {
		raws = append(raws, raw)
	}
	sort.Strings(raws)
	for _, raw := range raws {
		canonical := overrides[raw]
		if strings.TrimSpace(raw) == "" {
			return invalidRequest("category override with empty source value")
		}
		known := false
		for _, kind := range e.vocab.Kinds() {
			if e.vocab.IsCanonical(kind, canonical) {
				known = true
				break
			}
		}
		if !known {
			return invalidRequest("category override %q -> %q: %q is not a known vocabulary value", raw, canonical, canonical)
		}
	}
	return nil
}

// Commit writes every committable row. Row failures are captured in the result; only a
// failure of the surrounding transaction returns an error, wrapping ErrCommitAborted.
func (e *CommitEngine) Commit(ctx context.Context, req CommitRequest) (CommitResult, error) {
	strategy := req.DuplicateStrategy
	if strategy == "" {
		strategy = DuplicateUpdate
	}
	logger := e.logger.WithFields(logrus.Fields{
		"tenant_id": req.TenantID,
		"batch_id":  req.Batch.ID,
	})

	var result CommitResult
	err := e.uow.InTx(ctx, func(tx repository.Tx) error {
		result = CommitResult{Rows: make([]domain.StagingRow, 0, len(req.Rows))}

		loader := customerloader.NewCustomerLoader(tx.Customers(), req.TenantID)
		if err := loader.Prefetch(ctx, externalRefs(req.Rows)); err != nil {
			return err
		}
		detector := dedupe.NewDetector(tx.Customers(), loader, e.dedupeCfg)

		learned := make(map[string]domain.VocabularyAlias)
		for _, row := range req.Rows {
			if !row.Committable() {
				row.FinalAction = domain.ActionSkipped
				result.Rows = append(result.Rows, row)
				continue
			}

			values, aliases := e.applyOverrides(req.TenantID, row, req.CategoryOverrides)
			committed, err := e.commitRow(ctx, tx, detector, loader, req, strategy, row, values)
			if err != nil {
				message := rowMessage(row.RowNumber, err)
				logger.WithField("row", row.RowNumber).WithError(err).Warn("import row failed")
				if logErr := e.recordFailure(ctx, tx, req, row.RowNumber, message); logErr != nil {
					return logErr
				}
				row.FinalAction = domain.ActionError
				result.Rows = append(result.Rows, row)
				result.RowErrors = append(result.RowErrors, RowError{Row: row.RowNumber, Message: message})
				continue
			}
			for _, alias := range aliases {
				learned[alias.Kind+"\x00"+strings.ToLower(alias.Alias)] = alias
			}
			result.Rows = append(result.Rows, committed)
		}

		now := e.now()
		res := req.Resolution
		if _, err := tx.Signatures().RecordOccurrence(ctx, req.TenantID, res.Signature, res.Headers(), now); err != nil {
			return fmt.Errorf("failed to record column signature: %w", err)
		}

		profile, err := e.saveProfile(ctx, tx, req, now)
		if err != nil {
			return err
		}
		result.Profile = profile

		keys := make([]string, 0, len(learned))
		for key := range learned {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			alias := learned[key]
			if err := tx.Aliases().Upsert(ctx, alias); err != nil {
				return fmt.Errorf("failed to register vocabulary alias %q: %w", alias.Alias, err)
			}
			result.Aliases = append(result.Aliases, alias)
		}

		batch, err := req.Batch.WithRows(result.Rows).TransitionTo(domain.BatchCommitted)
		if err != nil {
			return err
		}
		batch, err = tx.Batches().Update(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to update batch: %w", err)
		}
		result.Batch = batch
		return nil
	})
	if err != nil {
		logger.WithError(err).Error("import commit aborted")
		return CommitResult{}, fmt.Errorf("%w: %v", ErrCommitAborted, err)
	}

	summary := result.Batch.Summary
	logger.WithFields(logrus.Fields{
		"created": summary.Created,
		"updated": summary.Updated,
		"skipped": summary.Skipped,
		"failed":  summary.Failed,
	}).Info("import committed")
	return result, nil
}

func (e *CommitEngine) commitRow(
	ctx context.Context,
	tx repository.Tx,
	detector *dedupe.Detector,
	loader *customerloader.CustomerLoader,
	req CommitRequest,
	strategy DuplicateStrategy,
	row domain.StagingRow,
	values map[domain.Field]string,
) (domain.StagingRow, error) {
	out := row
	out.Mapped = values
	err := tx.InSavepoint(ctx, func(sp repository.Tx) error {
		match, err := detector.Detect(ctx, req.TenantID, dedupe.CandidateFromValues(values))
		if err != nil {
			return err
		}

		var written domain.Customer
		var changes []domain.Change
		action := domain.ActionCreated
		if match == nil {
			out.Duplicate = nil
			written, err = sp.Customers().Create(ctx, domain.NewCustomer(req.TenantID, values))
			if err != nil {
				return fmt.Errorf("failed to create customer: %w", err)
			}
		} else {
			duplicate := match.DuplicateMatch
			out.Duplicate = &duplicate
			if strategy == DuplicateSkip {
				out.FinalAction = domain.ActionSkipped
				out.CustomerID = &match.CustomerID
				return nil
			}
			changes = domain.DiffCustomer(match.Customer, values)
			if len(changes) == 0 {
				out.FinalAction = domain.ActionSkipped
				out.CustomerID = &match.CustomerID
				return nil
			}
			updated := match.Customer.WithValues(values)
			updated.UpdatedAt = e.now()
			written, err = sp.Customers().Update(ctx, updated)
			if err != nil {
				return fmt.Errorf("failed to update customer %s: %w", match.CustomerID, err)
			}
			action = domain.ActionUpdated
		}

		entry := domain.AuditEntry{
			ID:         uuid.New(),
			TenantID:   req.TenantID,
			BatchID:    req.Batch.ID,
			CustomerID: written.ID,
			Action:     action,
			RowNumber:  row.RowNumber,
			Changes:    changes,
			CreatedAt:  e.now(),
		}
		if err := sp.Audit().Record(ctx, entry); err != nil {
			return fmt.Errorf("failed to write audit entry: %w", err)
		}

		loader.Prime(ctx, written)
		id := written.ID
		out.CustomerID = &id
		out.FinalAction = action
		return nil
	})
	if err != nil {
		return row, err
	}
	return out, nil
}

// applyOverrides substitutes user-chosen canonical values for vocabulary values that did
// not resolve, and returns the aliases to remember for next time.
func (e *CommitEngine) applyOverrides(tenantID uuid.UUID, row domain.StagingRow, overrides map[string]string) (map[domain.Field]string, []domain.VocabularyAlias) {
	values := make(map[domain.Field]string, len(row.Mapped))
	for field, value := range row.Mapped {
		values[field] = value
	}
	if len(overrides) == 0 {
		return values, nil
	}

	byKey := make(map[string]string, len(overrides))
	for raw, canonical := range overrides {
		byKey[textsim.Key(raw)] = canonical
	}

	fields := make([]domain.Field, 0, len(row.VocabularyMatches))
	for field := range row.VocabularyMatches {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	var aliases []domain.VocabularyAlias
	for _, field := range fields {
		match := row.VocabularyMatches[field]
		if match.Type != domain.VocabularyNone {
			continue
		}
		canonical, ok := overrides[match.Raw]
		if !ok {
			canonical, ok = byKey[textsim.Key(match.Raw)]
		}
		if !ok || !e.vocab.IsCanonical(match.Kind, canonical) {
			continue
		}
		values[field] = canonical
		aliases = append(aliases, domain.VocabularyAlias{
			ID:        uuid.New(),
			TenantID:  tenantID,
			Kind:      match.Kind,
			Alias:     match.Raw,
			Canonical: canonical,
			CreatedAt: e.now(),
		})
	}
	return values, aliases
}

func (e *CommitEngine) saveProfile(ctx context.Context, tx repository.Tx, req CommitRequest, now time.Time) (domain.MappingProfile, error) {
	res := req.Resolution
	columns := res.Mapping()

	var profile domain.MappingProfile
	if res.Profile != nil {
		profile = res.Profile.WithMapping(columns)
		if req.MappingConfirmed {
			profile = profile.Confirm()
		}
	} else {
		var err error
		profile, err = mapping.NewProfile(req.TenantID, req.Batch.FileName, res.Headers(), columns, req.MappingConfirmed)
		if err != nil {
			return domain.MappingProfile{}, fmt.Errorf("failed to build mapping profile: %w", err)
		}
	}

	saved, err := tx.Profiles().Save(ctx, profile)
	if err != nil {
		return domain.MappingProfile{}, fmt.Errorf("failed to save mapping profile: %w", err)
	}
	if err := tx.Profiles().MarkUsed(ctx, req.TenantID, saved.ID, now); err != nil {
		return domain.MappingProfile{}, fmt.Errorf("failed to mark mapping profile used: %w", err)
	}
	return saved.MarkUsed(now), nil
}

func (e *CommitEngine) recordFailure(ctx context.Context, tx repository.Tx, req CommitRequest, rowNumber int, message string) error {
	batchID := req.Batch.ID
	row := rowNumber
	entry := domain.ImportLogEntry{
		ID:           uuid.New(),
		TenantID:     req.TenantID,
		BatchID:      &batchID,
		FileName:     req.Batch.FileName,
		RowNumber:    &row,
		ErrorMessage: message,
		CreatedAt:    e.now(),
	}
	if err := tx.ImportLogs().Record(ctx, entry); err != nil {
		return fmt.Errorf("failed to record import failure (%s): %w", message, err)
	}
	return nil
}

func externalRefs(rows []domain.StagingRow) []string {
	refs := make([]string, 0, len(rows))
	for _, row := range rows {
		if ref := row.Mapped[domain.FieldExternalRef]; ref != "" && row.Committable() {
			refs = append(refs, ref)
		}
	}
	return refs
}
