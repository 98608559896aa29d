package webservices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gaxoblanco/SIFEN-sub001/certificate"
	"github.com/gaxoblanco/SIFEN-sub001/sifen"
	"github.com/gaxoblanco/SIFEN-sub001/xmlbuilder"
)

// Batch and payload size defaults.
const (
	DefaultBatchMaxDocs  = 50
	DefaultBatchMaxBytes = 50 * 1024 * 1024
	DefaultDocMaxBytes   = 10 * 1024 * 1024
	DefaultQueueDepth    = 1000

	// Contingency admission windows.
	ExtemporaneousAfter = 72 * time.Hour
	ContingencyDeadline = 720 * time.Hour
)

// ErrorKind discriminates the failure modes a submission can surface.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindSigning
	KindTransient
	KindThrottle
	KindRejected
	KindCancelled
	KindSystem
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindSigning:
		return "signing"
	case KindTransient:
		return "transient"
	case KindThrottle:
		return "throttle"
	case KindRejected:
		return "rejected"
	case KindCancelled:
		return "cancelled"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}

// SendError is the typed failure of a submission.
type SendError struct {
	Kind        ErrorKind
	Code        string
	Message     string
	Hint        string
	Attempts    int
	ElapsedMS   int64
	Fingerprint string
	Violations  []sifen.Violation
	Err         error
}

func (e *SendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("sifen %s [%s]: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("sifen %s: %s", e.Kind, e.Message)
}

func (e *SendError) Unwrap() error { return e.Err }

// SendResult is the final outcome of a single submission.
type SendResult struct {
	Success       bool
	CDC           string
	Protocol      string
	Status        DocumentStatus
	Errors        []ResponseError
	Attempts      int
	DurationMS    int64
	CorrelationID string
}

// BatchResult carries per-document results in request order plus the
// aggregate flags.
type BatchResult struct {
	Results           []SendResult
	Protocol          string
	AllAccepted       bool
	PartiallyAccepted bool
	AllRejected       bool
}

// QueryResult is the current SET state of a document.
type QueryResult struct {
	CDC      string
	Status   DocumentStatus
	Code     string
	Message  string
	Protocol string
}

// AsyncResult is delivered on the channel returned by SendOneAsync.
type AsyncResult struct {
	Result *SendResult
	Err    error
}

// Config is the sender configuration, set once at construction.
type Config struct {
	Environment sifen.Environment
	RUCEmisor   string

	CertificatePath     string
	CertificatePassword string

	TimeoutMS  int
	MaxRetries int
	VerifyTLS  bool

	// Retry overrides the backoff policy. The zero value takes the
	// defaults with MaxRetries as the attempt bound.
	Retry RetryPolicy

	RateLimits RateLimits
	QueueDepth int

	BatchMaxDocs  int
	BatchMaxBytes int
	DocMaxBytes   int

	// Mode selects which validation side gates submission.
	Mode xmlbuilder.ValidationMode

	// JournalPath enables the JSONL submission journal when non-empty.
	JournalPath string

	// BaseURL and HTTPClient override the environment endpoint and
	// transport; intended for tests against a mock service.
	BaseURL    string
	HTTPClient *http.Client
}

func (c Config) withDefaults() Config {
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = int(DefaultTimeout / time.Millisecond)
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxAttempts
	}
	if c.QueueDepth <= 0 {
		c.QueueDepth = DefaultQueueDepth
	}
	if c.BatchMaxDocs <= 0 {
		c.BatchMaxDocs = DefaultBatchMaxDocs
	}
	if c.BatchMaxBytes <= 0 {
		c.BatchMaxBytes = DefaultBatchMaxBytes
	}
	if c.DocMaxBytes <= 0 {
		c.DocMaxBytes = DefaultDocMaxBytes
	}
	c.RateLimits = c.RateLimits.withDefaults()
	return c
}

// Sender orchestrates a submission end to end: validate, map, sign,
// rate-limit, submit, classify, retry. One instance is safe to share
// across goroutines.
type Sender struct {
	cfg     Config
	signer  *certificate.Signer
	soap    *SOAPClient
	hybrid  *xmlbuilder.HybridValidator
	mapper  *xmlbuilder.Mapper
	limits  *limiterPool
	retry   RetryPolicy
	logger  *logrus.Logger
	journal *Journal

	queued int64

	seriesMu sync.Mutex
	series   map[sifen.SeriesKey]*sync.Mutex
}

// NewSender builds a sender from the configuration and signing material.
// A nil logger is replaced with a silent one.
func NewSender(cfg Config, cert certificate.Certificate, logger *logrus.Logger) (*Sender, error) {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	signer, err := certificate.NewSigner(cert)
	if err != nil {
		return nil, err
	}
	soap, err := NewSOAPClient(cfg.Environment, cfg.VerifyTLS,
		time.Duration(cfg.TimeoutMS)*time.Millisecond, cfg.BaseURL, cfg.HTTPClient, logger)
	if err != nil {
		return nil, err
	}

	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = cfg.MaxRetries
	}

	s := &Sender{
		cfg:    cfg,
		signer: signer,
		soap:   soap,
		hybrid: xmlbuilder.NewHybridValidator(cfg.Mode, logger),
		mapper: xmlbuilder.NewMapper(),
		limits: newLimiterPool(cfg.RateLimits),
		retry:  retry,
		logger: logger,
		series: make(map[sifen.SeriesKey]*sync.Mutex),
	}
	if cfg.JournalPath != "" {
		j, err := OpenJournal(cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		s.journal = j
	}
	return s, nil
}

// Close releases the journal, when one is open.
func (s *Sender) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}

// SendOne validates, signs and submits one document and returns the
// final result. Callers never observe partial state: either a result or
// a typed *SendError.
func (s *Sender) SendOne(ctx context.Context, doc *sifen.Documento) (*SendResult, error) {
	if n := atomic.AddInt64(&s.queued, 1); n > int64(s.cfg.QueueDepth) {
		atomic.AddInt64(&s.queued, -1)
		return nil, &SendError{
			Kind:    KindSystem,
			Message: fmt.Sprintf("submission queue is full (%d pending)", s.cfg.QueueDepth),
			Hint:    "apply backpressure upstream; this is not retriable from the submitter",
		}
	}
	defer atomic.AddInt64(&s.queued, -1)

	start := time.Now()
	correlation := uuid.NewString()
	fingerprint := doc.Fingerprint()
	log := s.logger.WithFields(logrus.Fields{
		"correlation": correlation,
		"fingerprint": fingerprint,
	})

	fail := func(err *SendError) (*SendResult, error) {
		err.Fingerprint = fingerprint
		err.ElapsedMS = time.Since(start).Milliseconds()
		s.record(correlation, fingerprint, doc.CDC, start, err.Kind.String(), err.Code, err.Attempts)
		log.WithField("kind", err.Kind.String()).Warn(err.Message)
		return nil, err
	}

	if doc.TipoEmision == sifen.EmissionContingency {
		age := time.Since(doc.Emision)
		if age > ContingencyDeadline {
			return fail(&SendError{
				Kind:    KindValidation,
				Message: fmt.Sprintf("contingency document issued %s ago exceeds the 720 hour deadline", age.Round(time.Hour)),
				Hint:    "the document can no longer be regularized; issue a new one",
			})
		}
	}

	prepared := *doc
	if prepared.CDC == "" {
		var err error
		prepared, err = prepared.GenerateCDC()
		if err != nil {
			return fail(&SendError{Kind: KindValidation, Message: err.Error(), Err: err})
		}
	}

	report, err := s.hybrid.Validate(&prepared)
	if err != nil {
		return fail(&SendError{Kind: KindValidation, Message: err.Error(), Err: err})
	}
	if s.hybrid.Blocks(report) {
		return fail(&SendError{
			Kind:       KindValidation,
			Message:    "document failed validation",
			Hint:       "fix the reported violations and resubmit",
			Violations: prepared.Validate(),
		})
	}

	// Same-series submissions are serialized so sequence numbers reach
	// SET in order.
	unlock := s.lockSeries(prepared.SeriesKey())
	defer unlock()

	signed, sendErr := s.prepareSigned(ctx, &prepared)
	if sendErr != nil {
		return fail(sendErr)
	}

	resp, attempts, sendErr := s.submit(ctx, prepared.Emisor.RUC.Base, correlation, signed)
	if sendErr != nil {
		sendErr.Attempts = attempts
		return fail(sendErr)
	}

	result := &SendResult{
		Success:       resp.Success,
		CDC:           prepared.CDC,
		Protocol:      resp.Protocol,
		Status:        resp.Status,
		Errors:        resp.Errors,
		Attempts:      attempts,
		DurationMS:    time.Since(start).Milliseconds(),
		CorrelationID: correlation,
	}
	if !resp.Success {
		cls := Classify(resp.Code)
		sendErr := &SendError{
			Kind:     KindRejected,
			Code:     resp.Code,
			Message:  resp.Message,
			Hint:     cls.Hint,
			Attempts: attempts,
		}
		if cls.Category == CategoryValidation {
			sendErr.Kind = KindValidation
		}
		if cls.Category == CategorySigning {
			sendErr.Kind = KindSigning
		}
		return fail(sendErr)
	}

	s.record(correlation, fingerprint, prepared.CDC, start, result.Status.String(), resp.Code, attempts)
	log.WithFields(logrus.Fields{
		"cdc":      result.CDC,
		"protocol": result.Protocol,
		"status":   result.Status.String(),
		"attempts": attempts,
	}).Info("document accepted")
	return result, nil
}

// SendOneAsync submits on a worker goroutine and delivers the outcome on
// the returned channel.
func (s *Sender) SendOneAsync(ctx context.Context, doc *sifen.Documento) <-chan AsyncResult {
	ch := make(chan AsyncResult, 1)
	go func() {
		result, err := s.SendOne(ctx, doc)
		ch <- AsyncResult{Result: result, Err: err}
	}()
	return ch
}

// SendBatch validates, signs and submits up to BatchMaxDocs documents as
// one SET batch. The batch is rejected before signing when any document
// fails validation or a size bound; the error names the failing index.
func (s *Sender) SendBatch(ctx context.Context, docs []*sifen.Documento) (*BatchResult, error) {
	start := time.Now()
	correlation := uuid.NewString()

	if len(docs) == 0 {
		return nil, &SendError{Kind: KindSystem, Message: "batch is empty"}
	}
	if len(docs) > s.cfg.BatchMaxDocs {
		return nil, &SendError{
			Kind:    KindSystem,
			Message: fmt.Sprintf("batch of %d documents exceeds the %d document limit", len(docs), s.cfg.BatchMaxDocs),
			Hint:    "split the batch",
		}
	}

	prepared := make([]sifen.Documento, len(docs))
	for i, doc := range docs {
		p := *doc
		if p.CDC == "" {
			var err error
			p, err = p.GenerateCDC()
			if err != nil {
				return nil, s.batchIndexError(i, err.Error(), nil)
			}
		}
		report, err := s.hybrid.Validate(&p)
		if err != nil {
			return nil, s.batchIndexError(i, err.Error(), nil)
		}
		if s.hybrid.Blocks(report) {
			return nil, s.batchIndexError(i, "document failed validation", p.Validate())
		}
		prepared[i] = p
	}

	signed := make([][]byte, len(prepared))
	total := 0
	for i := range prepared {
		bytes, sendErr := s.prepareSigned(ctx, &prepared[i])
		if sendErr != nil {
			sendErr.Message = fmt.Sprintf("document %d: %s", i, sendErr.Message)
			return nil, sendErr
		}
		signed[i] = bytes
		total += len(bytes)
	}
	if total > s.cfg.BatchMaxBytes {
		return nil, &SendError{
			Kind:    KindSystem,
			Message: fmt.Sprintf("batch payload of %d bytes exceeds the %d byte limit", total, s.cfg.BatchMaxBytes),
			Hint:    "split the batch",
		}
	}

	release, err := s.limits.acquireBatch(ctx, s.batchRUC(prepared))
	if err != nil {
		return nil, &SendError{Kind: KindCancelled, Message: "cancelled while waiting for the batch window", Err: err}
	}
	resp, err := s.soap.SendLote(ctx, correlation, signed)
	release()
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &SendError{Kind: KindCancelled, Message: "batch submission cancelled", Err: err}
		}
		return nil, &SendError{Kind: KindTransient, Message: err.Error(), Err: err}
	}

	batch := &BatchResult{Protocol: resp.Protocol}
	accepted := 0
	for i := range prepared {
		r := SendResult{
			Success:       resp.Success,
			CDC:           prepared[i].CDC,
			Protocol:      resp.Protocol,
			Status:        resp.Status,
			Attempts:      1,
			DurationMS:    time.Since(start).Milliseconds(),
			CorrelationID: correlation,
		}
		if resp.Success {
			accepted++
		} else {
			r.Errors = resp.Errors
		}
		batch.Results = append(batch.Results, r)
	}
	batch.AllAccepted = accepted == len(prepared)
	batch.AllRejected = accepted == 0
	batch.PartiallyAccepted = !batch.AllAccepted && !batch.AllRejected
	return batch, nil
}

// Query looks up the current SET state of a document by CDC.
func (s *Sender) Query(ctx context.Context, cdc string) (*QueryResult, error) {
	if err := sifen.ValidateCDC(cdc); err != nil {
		return nil, &SendError{Kind: KindValidation, Message: err.Error(), Err: err}
	}
	ruc := s.cfg.RUCEmisor
	if ruc == "" {
		ruc = cdc[:8]
	}
	release, err := s.limits.acquire(ctx, ruc)
	if err != nil {
		return nil, &SendError{Kind: KindCancelled, Message: "cancelled while waiting for a request slot", Err: err}
	}
	defer release()

	resp, err := s.soap.QueryCDC(ctx, uuid.NewString(), cdc)
	if err != nil {
		return nil, &SendError{Kind: KindTransient, Message: err.Error(), Err: err}
	}
	return &QueryResult{
		CDC:      cdc,
		Status:   resp.Status,
		Code:     resp.Code,
		Message:  resp.Message,
		Protocol: resp.Protocol,
	}, nil
}

// QueryBatch looks up the processing state of a batch by its protocol
// number.
func (s *Sender) QueryBatch(ctx context.Context, protocol string) (*QueryResult, error) {
	if protocol == "" {
		return nil, &SendError{Kind: KindValidation, Message: "batch protocol is required"}
	}
	release, err := s.limits.acquire(ctx, s.cfg.RUCEmisor)
	if err != nil {
		return nil, &SendError{Kind: KindCancelled, Message: "cancelled while waiting for a request slot", Err: err}
	}
	defer release()

	resp, err := s.soap.QueryLote(ctx, uuid.NewString(), protocol)
	if err != nil {
		return nil, &SendError{Kind: KindTransient, Message: err.Error(), Err: err}
	}
	return &QueryResult{
		Status:   resp.Status,
		Code:     resp.Code,
		Message:  resp.Message,
		Protocol: protocol,
	}, nil
}

// prepareSigned maps the document to the official shape, checks the size
// bound and signs it.
func (s *Sender) prepareSigned(ctx context.Context, doc *sifen.Documento) ([]byte, *SendError) {
	mod, err := xmlbuilder.BuildModular(doc)
	if err != nil {
		return nil, &SendError{Kind: KindValidation, Message: err.Error(), Err: err}
	}
	off, err := s.mapper.ToOfficial(mod)
	if err != nil {
		return nil, &SendError{Kind: KindValidation, Message: err.Error(), Err: err}
	}
	payload, err := xmlbuilder.Serialize(off)
	if err != nil {
		return nil, &SendError{Kind: KindSystem, Message: err.Error(), Err: err}
	}
	if len(payload) > s.cfg.DocMaxBytes {
		return nil, &SendError{
			Kind:    KindValidation,
			Message: fmt.Sprintf("document payload of %d bytes exceeds the %d byte limit", len(payload), s.cfg.DocMaxBytes),
			Hint:    "reduce free-text fields or split the operation",
		}
	}

	signed, err := s.signer.Sign(ctx, payload)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, &SendError{Kind: KindCancelled, Message: "cancelled during signing", Err: err}
		}
		return nil, &SendError{Kind: KindSigning, Message: err.Error(), Err: err}
	}
	return signed, nil
}

// submit runs the rate-limited send/classify/retry loop over the same
// signed bytes. Re-signing between attempts would change the payload and
// break fingerprint correlation.
func (s *Sender) submit(ctx context.Context, ruc, correlation string, signed []byte) (*Response, int, *SendError) {
	var delay time.Duration
	var last Classification
	attempts := 0

	for attempts < s.retry.Attempts() {
		if attempts > 0 {
			if last.Category == CategoryThrottle {
				if err := s.limits.throttleWait(ctx, ruc, last.ThrottlePerRUC); err != nil {
					return nil, attempts, &SendError{Kind: KindCancelled, Message: "cancelled while waiting out a throttle window", Err: err}
				}
			} else {
				delay = s.retry.NextDelay(delay)
				t := time.NewTimer(delay)
				select {
				case <-ctx.Done():
					t.Stop()
					return nil, attempts, &SendError{Kind: KindCancelled, Message: "cancelled between attempts", Err: ctx.Err()}
				case <-t.C:
				}
			}
		}

		release, err := s.limits.acquire(ctx, ruc)
		if err != nil {
			return nil, attempts, &SendError{Kind: KindCancelled, Message: "cancelled while waiting for a request slot", Err: err}
		}
		attempts++
		resp, err := s.soap.SendDE(ctx, correlation, signed)
		release()

		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, attempts, &SendError{Kind: KindCancelled, Message: "request aborted", Err: err}
			}
			// Network, TLS and 5xx failures are transient.
			last = Classification{Category: CategoryTransient, Retryable: true}
			s.logger.WithFields(logrus.Fields{
				"correlation": correlation,
				"attempt":     attempts,
			}).WithError(err).Warn("transient transport failure")
			if attempts >= s.retry.Attempts() {
				return nil, attempts, &SendError{Kind: KindTransient, Message: err.Error(), Err: err,
					Hint: "the service could not be reached; attempts are exhausted"}
			}
			continue
		}

		last = Classify(resp.Code)
		switch last.Category {
		case CategorySuccess:
			return resp, attempts, nil
		case CategoryTransient, CategoryThrottle:
			s.logger.WithFields(logrus.Fields{
				"correlation": correlation,
				"attempt":     attempts,
				"code":        resp.Code,
			}).Warn("retryable response")
			if attempts >= s.retry.Attempts() {
				kind := KindTransient
				if last.Category == CategoryThrottle {
					kind = KindThrottle
				}
				return nil, attempts, &SendError{Kind: kind, Code: resp.Code, Message: resp.Message, Hint: last.Hint}
			}
		default:
			// Final answer: success or not, the caller gets it unretried.
			return resp, attempts, nil
		}
	}
	return nil, attempts, &SendError{Kind: KindTransient, Code: last.Code, Message: "attempts exhausted", Hint: last.Hint}
}

func (s *Sender) lockSeries(key sifen.SeriesKey) func() {
	s.seriesMu.Lock()
	mu, ok := s.series[key]
	if !ok {
		mu = &sync.Mutex{}
		s.series[key] = mu
	}
	s.seriesMu.Unlock()
	mu.Lock()
	return mu.Unlock
}

func (s *Sender) batchRUC(docs []sifen.Documento) string {
	if s.cfg.RUCEmisor != "" {
		return s.cfg.RUCEmisor
	}
	return docs[0].Emisor.RUC.Base
}

func (s *Sender) batchIndexError(index int, message string, violations []sifen.Violation) *SendError {
	return &SendError{
		Kind:       KindValidation,
		Message:    fmt.Sprintf("document %d: %s", index, message),
		Hint:       "fix the named document and resubmit the batch",
		Violations: violations,
	}
}

func (s *Sender) record(correlation, fingerprint, cdc string, start time.Time, outcome, code string, attempts int) {
	if s.journal == nil {
		return
	}
	err := s.journal.Record(JournalEntry{
		CorrelationID: correlation,
		Fingerprint:   fingerprint,
		CDC:           cdc,
		StartedAt:     start,
		FinishedAt:    time.Now(),
		Outcome:       outcome,
		Code:          code,
		Attempts:      attempts,
	})
	if err != nil {
		s.logger.WithError(err).Warn("journal write failed")
	}
}
