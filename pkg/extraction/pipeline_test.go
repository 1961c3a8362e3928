package extraction

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hanavoice/hana/pkg/errorsx"
	"github.com/hanavoice/hana/pkg/transcript"
)

type stubCompleter struct {
	response string
	err      error
	prompts  []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func fixedNow() time.Time {
	return time.Date(2025, 1, 2, 7, 0, 0, 0, time.UTC)
}

func TestProcessCallEndEmptyTranscript(t *testing.T) {
	dir := t.TempDir()
	pipe := NewPipeline(NewStore(dir), nil)
	pipe.now = fixedNow

	result, err := pipe.ProcessCallEnd(context.Background(), nil)
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if result.LogRef == "" {
		t.Fatalf("expected a log ref for the empty transcript")
	}
	if len(result.Requests) != 0 {
		t.Fatalf("expected no requests, got %d", len(result.Requests))
	}
	if _, err := os.Stat(filepath.Join(dir, result.LogRef)); err != nil {
		t.Fatalf("call record not written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, pendingFileName)); !os.IsNotExist(err) {
		t.Fatalf("pending file must not be written for an empty extraction")
	}
}

func TestProcessCallEndExtractsRequests(t *testing.T) {
	dir := t.TempDir()
	completer := &stubCompleter{
		response: "추출 결과입니다:\n[{\"type\": \"reminder\", \"content\": \"모닝콜\", \"datetime\": \"2025-01-03 07:00\"}]\n이상입니다.",
	}
	pipe := NewPipeline(NewStore(dir), completer)
	pipe.now = fixedNow

	conversation := []transcript.Turn{
		{Role: transcript.SpeakerUser, Content: "내일 7시에 모닝콜 해줘"},
		{Role: transcript.SpeakerAssistant, Content: "네, 알겠습니다"},
	}
	result, err := pipe.ProcessCallEnd(context.Background(), conversation)
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if len(result.Requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(result.Requests))
	}
	req := result.Requests[0]
	if req.Type != KindReminder || req.Content != "모닝콜" || req.Datetime != "2025-01-03 07:00" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if len(completer.prompts) != 1 {
		t.Fatalf("expected 1 completion call, got %d", len(completer.prompts))
	}

	batches, err := NewStore(dir).LoadBatches()
	if err != nil {
		t.Fatalf("load batches: %v", err)
	}
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	if batches[0].Status != StatusPending || batches[0].LogFile != result.LogRef {
		t.Fatalf("unexpected batch: %+v", batches[0])
	}
}

func TestProcessCallEndWithoutCompleter(t *testing.T) {
	pipe := NewPipeline(NewStore(t.TempDir()), nil)
	pipe.now = fixedNow

	conversation := []transcript.Turn{
		{Role: transcript.SpeakerUser, Content: "내일 아침 7시에 모닝콜 해줘"},
	}
	result, err := pipe.ProcessCallEnd(context.Background(), conversation)
	if err != nil {
		t.Fatalf("process error: %v", err)
	}
	if result.LogRef == "" {
		t.Fatalf("expected a log ref")
	}
	if len(result.Requests) != 0 {
		t.Fatalf("expected no requests without a completer, got %d", len(result.Requests))
	}
}

func TestExtractDegradesOnModelFailure(t *testing.T) {
	pipe := NewPipeline(NewStore(t.TempDir()), &stubCompleter{err: errors.New("model down")})
	requests := pipe.Extract(context.Background(), []transcript.Turn{{Role: transcript.SpeakerUser, Content: "hi"}})
	if requests != nil {
		t.Fatalf("expected nil requests on model failure, got %v", requests)
	}
}

func TestExtractDegradesOnUnparseableOutput(t *testing.T) {
	pipe := NewPipeline(NewStore(t.TempDir()), &stubCompleter{response: "요청이 없습니다"})
	requests := pipe.Extract(context.Background(), []transcript.Turn{{Role: transcript.SpeakerUser, Content: "hi"}})
	if requests != nil {
		t.Fatalf("expected nil requests for unparseable output, got %v", requests)
	}
}

func TestParseRequests(t *testing.T) {
	requests, err := parseRequests(`before [{"type":"todo","content":"우유 사기"}] after`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(requests) != 1 || requests[0].Type != KindTodo {
		t.Fatalf("unexpected requests: %+v", requests)
	}

	if _, err := parseRequests("no array here"); !errorsx.HasReason(err, errorsx.ReasonExtractionParse) {
		t.Fatalf("expected parse reason, got %v", err)
	}
	if _, err := parseRequests("[{broken"); err == nil {
		t.Fatalf("expected error for malformed array")
	}

	requests, err = parseRequests("[]")
	if err != nil || len(requests) != 0 {
		t.Fatalf("expected empty result, got %v %v", requests, err)
	}
}
