// Package extraction turns a completed call transcript into typed,
// schedulable requests. The raw transcript is persisted before any model
// call is made; extraction failure never loses the log.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hanavoice/hana/pkg/errorsx"
	"github.com/hanavoice/hana/pkg/logging"
	"github.com/hanavoice/hana/pkg/transcript"
)

const promptTemplate = `다음 전화 통화 내용에서 사용자가 요청한 것들을 추출해줘.

통화 내용:
%s

요청 타입:
- reminder: 알림/리마인더 (예: "내일 7시에 모닝콜 해줘", "저녁 6시에 약속 있어")
- todo: 할 일 (예: "마트에서 우유 사와", "문서 작성해야 해")
- calendar: 일정 (예: "다음 주 월요일에 회의 있어")
- call_back: 콜백 요청 (예: "나중에 다시 전화해줘")

JSON 배열로 반환해줘:
[
  {"type": "reminder", "content": "내용", "datetime": "YYYY-MM-DD HH:MM (있으면)"},
  ...
]

요청이 없으면 빈 배열 []을 반환해줘.
`

// Result is what a completed call yields: the storage key of the raw log
// and whatever requests extraction produced.
type Result struct {
	LogRef   string
	Requests []ExtractedRequest
}

type Pipeline struct {
	store     *Store
	completer Completer
	logger    *slog.Logger
	now       func() time.Time
}

// NewPipeline wires the pipeline. completer may be nil when no model
// credential is configured; extraction then degrades to an empty result.
func NewPipeline(store *Store, completer Completer) *Pipeline {
	return &Pipeline{
		store:     store,
		completer: completer,
		logger:    logging.NewComponentLogger(slog.Default(), "extraction"),
		now:       time.Now,
	}
}

// Persist writes the call record unconditionally, empty transcript
// included, and returns its storage key.
func (p *Pipeline) Persist(conversation []transcript.Turn) (string, error) {
	rec := transcript.CallRecord{
		Timestamp:    p.now(),
		Conversation: conversation,
	}
	logRef, err := p.store.SaveCallRecord(rec)
	if err != nil {
		return "", err
	}
	p.logger.Info("call_record_saved", "log_ref", logRef, "turns", len(conversation))
	return logRef, nil
}

// Extract asks the completion model for the requests present in the
// conversation. Missing credential, model failure, and unparseable output
// all degrade to an empty slice.
func (p *Pipeline) Extract(ctx context.Context, conversation []transcript.Turn) []ExtractedRequest {
	if p.completer == nil {
		p.logger.Info("extraction_skipped", "reason", "no completer configured")
		return nil
	}
	prompt := fmt.Sprintf(promptTemplate, transcript.Render(conversation))
	text, err := p.completer.Complete(ctx, prompt)
	if err != nil {
		p.logger.Warn("extraction_failed",
			"reason_code", string(errorsx.Reason(err)),
			"error", err.Error(),
		)
		return nil
	}
	requests, err := parseRequests(text)
	if err != nil {
		p.logger.Warn("extraction_parse_failed",
			"reason_code", string(errorsx.Reason(err)),
			"error", err.Error(),
		)
		return nil
	}
	return requests
}

// Record appends one pending batch for a call that yielded requests. An
// empty request list writes nothing.
func (p *Pipeline) Record(logRef string, requests []ExtractedRequest) error {
	if len(requests) == 0 {
		return nil
	}
	batch := ProcessedBatch{
		LogFile:     logRef,
		ProcessedAt: p.now(),
		Requests:    requests,
		Status:      StatusPending,
	}
	if err := p.store.AppendBatch(batch); err != nil {
		return err
	}
	p.logger.Info("requests_recorded", "log_ref", logRef, "count", len(requests))
	return nil
}

// ProcessCallEnd is the sole entry point the call bridge invokes at
// teardown: persist, then extract, then record when non-empty. Storage
// errors propagate; extraction errors do not.
func (p *Pipeline) ProcessCallEnd(ctx context.Context, conversation []transcript.Turn) (Result, error) {
	logRef, err := p.Persist(conversation)
	if err != nil {
		return Result{}, err
	}
	requests := p.Extract(ctx, conversation)
	result := Result{LogRef: logRef, Requests: requests}
	if err := p.Record(logRef, requests); err != nil {
		return result, err
	}
	return result, nil
}

// parseRequests pulls the first well-formed JSON array out of a free-text
// model response: everything between the first '[' and the last ']'.
// Deliberately best-effort; any failure reads as no requests.
func parseRequests(text string) ([]ExtractedRequest, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, errorsx.Wrap(fmt.Errorf("no JSON array in response"), errorsx.ReasonExtractionParse)
	}
	var requests []ExtractedRequest
	if err := json.Unmarshal([]byte(text[start:end+1]), &requests); err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonExtractionParse)
	}
	return requests, nil
}
