// Package pipeline orchestrates a verification run: validate, hash,
// classify, pin, anchor, persist. Each step is strictly sequential; the
// degradation policy differs per step.
package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/verichain-labs/verichain/internal/anchor"
	"github.com/verichain-labs/verichain/internal/content"
	"github.com/verichain-labs/verichain/internal/model"
	"github.com/verichain-labs/verichain/internal/resilience"
	"github.com/verichain-labs/verichain/internal/scoring"
	"github.com/verichain-labs/verichain/internal/store"
)

// Step names surfaced in error responses.
const (
	StepValidation     = "validation"
	StepHashing        = "hashing"
	StepClassification = "classification"
	StepPinning        = "pinning"
	StepAnchoring      = "anchoring"
	StepPersistence    = "persistence"
)

// StepError tags a failure with the pipeline step that produced it.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %s", e.Step, e.Err.Error())
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func stepErr(step string, err error) error {
	return &StepError{Step: step, Err: err}
}

// Classifier produces an analysis for image bytes.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (*model.Analysis, error)
	Configured() bool
}

// Pinner pins metadata and never fails.
type Pinner interface {
	Pin(ctx context.Context, name string, payload any) *model.PinResult
	Configured() bool
}

// Pipeline wires the verification steps together.
type Pipeline struct {
	store      store.Store
	classifier Classifier
	pinner     Pinner
	anchorer   anchor.Anchorer
	temp       *content.TempStore
	maxBytes   int64
	now        func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithTempStore enables the temp-file spool for uploads.
func WithTempStore(t *content.TempStore) Option {
	return func(p *Pipeline) {
		p.temp = t
	}
}

// WithMaxUploadBytes overrides the upload size ceiling.
func WithMaxUploadBytes(n int64) Option {
	return func(p *Pipeline) {
		p.maxBytes = n
	}
}

// WithClock overrides the record timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a Pipeline with all dependencies.
func New(st store.Store, classifier Classifier, pinner Pinner, anchorer anchor.Anchorer, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:      st,
		classifier: classifier,
		pinner:     pinner,
		anchorer:   anchorer,
		maxBytes:   content.DefaultMaxBytes,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Verify runs the full pipeline for an upload. Validation and classification
// failures abort; pinning always degrades to mock; anchoring degrades to a
// failed proof on retry exhaustion. The record is persisted only when the run
// reaches completion.
func (p *Pipeline) Verify(ctx context.Context, upload model.Upload) (*model.VerificationRecord, error) {
	log := zap.L().With(zap.String("filename", upload.Filename))
	start := time.Now()

	// Step 1: validation. Rejections here cost nothing downstream.
	info, err := content.Validate(upload.Data, upload.DeclaredType, p.maxBytes)
	if err != nil {
		return nil, stepErr(StepValidation, err)
	}

	// Step 2: hashing. Cannot fail on validated input.
	hash := content.Fingerprint(upload.Data)
	log = log.With(zap.String("content_hash", hash))

	if p.temp != nil {
		if path, saveErr := p.temp.Save(hash, info.DetectedType, upload.Data); saveErr != nil {
			log.Warn("pipeline: temp save failed", zap.Error(saveErr))
		} else {
			defer func() {
				if rmErr := p.temp.Remove(path); rmErr != nil {
					log.Warn("pipeline: temp remove failed", zap.Error(rmErr))
				}
			}()
		}
	}

	// Step 3: classification. A terminal failure aborts; exhaustion and
	// missing credentials already degraded inside the classifier.
	classifyStart := time.Now()
	analysis, err := p.classifier.Classify(ctx, upload.Data)
	if err != nil {
		log.Error("pipeline: classification failed",
			zap.Duration("duration", time.Since(classifyStart)),
			zap.Error(err),
		)
		return nil, stepErr(StepClassification, err)
	}
	log.Info("pipeline: classification complete",
		zap.String("model", analysis.ModelUsed),
		zap.Bool("synthetic", analysis.Synthetic),
		zap.Duration("duration", time.Since(classifyStart)),
	)

	trustScore := scoring.TrustScore(analysis.RealProbability)
	confidence := scoring.Confidence(analysis.AIProbability, analysis.RealProbability)
	tier := scoring.TierForScore(trustScore)

	rec := &model.VerificationRecord{
		ID:           uuid.New().String(),
		ContentHash:  hash,
		Filename:     upload.Filename,
		DeclaredType: info.DeclaredType,
		DetectedType: info.DetectedType,
		SizeBytes:    info.SizeBytes,
		TrustScore:   trustScore,
		Confidence:   confidence,
		AIGenerated:  analysis.AIProbability > analysis.RealProbability,
		Status:       tier,
		Analysis:     *analysis,
		CreatedAt:    p.now().UTC(),
	}

	// Step 4: pinning. Never fatal.
	rec.Pin = *p.pinner.Pin(ctx, "verification-"+hash[:16], p.metadataPayload(rec))

	// Step 5: anchoring. Terminal failure degrades to a failed proof; the
	// verification still completes with a local record.
	rec.Anchor = p.anchorRecord(ctx, log, rec)

	// Step 6: persist and return.
	if err := p.store.Append(ctx, rec); err != nil {
		return nil, stepErr(StepPersistence, eris.Wrap(err, "pipeline: append record"))
	}

	log.Info("pipeline: verification complete",
		zap.Int("trust_score", rec.TrustScore),
		zap.String("status", string(rec.Status)),
		zap.Duration("duration", time.Since(start)),
	)
	return rec, nil
}

var hashPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// VerifyHash runs the pre-hashed path: the caller supplies a content hash
// and trust score, skipping validation and classification.
func (p *Pipeline) VerifyHash(ctx context.Context, sub model.HashSubmission) (*model.VerificationRecord, error) {
	if !hashPattern.MatchString(sub.ContentHash) {
		return nil, stepErr(StepValidation, &content.ValidationError{
			Reason: "content hash must be 64 lowercase hex characters",
		})
	}
	if sub.TrustScore < 0 || sub.TrustScore > 100 {
		return nil, stepErr(StepValidation, &content.ValidationError{
			Reason: "trust score must be between 0 and 100",
		})
	}

	log := zap.L().With(zap.String("content_hash", sub.ContentHash))

	realProb := float64(sub.TrustScore) / 100
	rec := &model.VerificationRecord{
		ID:          uuid.New().String(),
		ContentHash: sub.ContentHash,
		TrustScore:  sub.TrustScore,
		Confidence:  scoring.Confidence(1-realProb, realProb),
		AIGenerated: realProb < 0.5,
		Status:      scoring.TierForScore(sub.TrustScore),
		Analysis: model.Analysis{
			AIProbability:   1 - realProb,
			RealProbability: realProb,
			ModelUsed:       "external",
		},
		CreatedAt: p.now().UTC(),
	}

	payload := p.metadataPayload(rec)
	for k, v := range sub.Metadata {
		payload[k] = v
	}
	rec.Pin = *p.pinner.Pin(ctx, "verification-"+sub.ContentHash[:16], payload)
	rec.Anchor = p.anchorRecord(ctx, log, rec)

	if err := p.store.Append(ctx, rec); err != nil {
		return nil, stepErr(StepPersistence, eris.Wrap(err, "pipeline: append record"))
	}
	return rec, nil
}

func (p *Pipeline) anchorRecord(ctx context.Context, log *zap.Logger, rec *model.VerificationRecord) model.AnchorProof {
	anchorStart := time.Now()
	proof, err := p.anchorer.Anchor(ctx, rec.ContentHash, rec.TrustScore, rec.Pin.CID)
	if err != nil {
		if resilience.IsTerminal(err) {
			log.Warn("pipeline: anchoring exhausted retries, completing with local record only",
				zap.Duration("duration", time.Since(anchorStart)),
				zap.Error(err),
			)
			return *anchor.FailedProof()
		}
		log.Warn("pipeline: anchoring failed, completing with local record only", zap.Error(err))
		return *anchor.FailedProof()
	}
	log.Info("pipeline: anchoring complete",
		zap.Bool("mock", proof.Mock),
		zap.Duration("duration", time.Since(anchorStart)),
	)
	return *proof
}

// metadataPayload is the JSON object pinned to content-addressed storage.
func (p *Pipeline) metadataPayload(rec *model.VerificationRecord) map[string]any {
	return map[string]any{
		"content_hash":     rec.ContentHash,
		"filename":         rec.Filename,
		"trust_score":      rec.TrustScore,
		"confidence":       rec.Confidence,
		"status":           string(rec.Status),
		"ai_probability":   rec.Analysis.AIProbability,
		"real_probability": rec.Analysis.RealProbability,
		"model_used":       rec.Analysis.ModelUsed,
		"verified_at":      rec.CreatedAt.Format(time.RFC3339),
	}
}
