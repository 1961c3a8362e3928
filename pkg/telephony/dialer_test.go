package telephony

import (
	"context"
	"strings"
	"testing"

	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type stubCallCreator struct {
	params *api.CreateCallParams
	sid    string
}

func (s *stubCallCreator) CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error) {
	s.params = params
	return &api.ApiV2010Call{Sid: &s.sid}, nil
}

func TestDialerPlacesCall(t *testing.T) {
	stub := &stubCallCreator{sid: "CA123"}
	d := NewDialer(Config{
		AccountSID: "AC1",
		AuthToken:  "token",
		PublicURL:  "https://hana.example.io",
	})
	d.client = stub

	sid, err := d.Dial(context.Background(), "+821012345678", "+15550001111")
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if sid != "CA123" {
		t.Fatalf("unexpected sid %s", sid)
	}
	if stub.params == nil || stub.params.To == nil || *stub.params.To != "+821012345678" {
		t.Fatalf("to not forwarded: %+v", stub.params)
	}
	if *stub.params.From != "+15550001111" {
		t.Fatalf("from not forwarded: %s", *stub.params.From)
	}
	if *stub.params.Url != "https://hana.example.io/incoming" {
		t.Fatalf("unexpected webhook url %s", *stub.params.Url)
	}
}

func TestDialerRequiresCredentials(t *testing.T) {
	d := NewDialer(Config{})
	if _, err := d.Dial(context.Background(), "+8210", "+1555"); err == nil {
		t.Fatalf("expected error without credentials")
	}
}

func TestDialerRequiresNumbers(t *testing.T) {
	d := NewDialer(Config{AccountSID: "AC1", AuthToken: "token"})
	if _, err := d.Dial(context.Background(), "", "+1555"); err == nil {
		t.Fatalf("expected error without destination number")
	}
}

type stubCallUpdater struct {
	lastSID   string
	lastTwiml string
}

func (s *stubCallUpdater) UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error) {
	s.lastSID = sid
	if params != nil && params.Twiml != nil {
		s.lastTwiml = *params.Twiml
	}
	return &api.ApiV2010Call{}, nil
}

func TestRedirectSaySpeaksNoticeAndHangsUp(t *testing.T) {
	stub := &stubCallUpdater{}
	d := NewDialer(Config{AccountSID: "AC1", AuthToken: "token"})
	d.updater = stub

	if err := d.RedirectSay(context.Background(), "CA9", "연결이 어려워요 & 죄송해요"); err != nil {
		t.Fatalf("redirect: %v", err)
	}
	if stub.lastSID != "CA9" {
		t.Fatalf("unexpected call sid %s", stub.lastSID)
	}
	if !strings.Contains(stub.lastTwiml, `<Say voice="alice" language="ko-KR">`) {
		t.Fatalf("say element missing: %s", stub.lastTwiml)
	}
	if !strings.Contains(stub.lastTwiml, "연결이 어려워요 &amp; 죄송해요") {
		t.Fatalf("notice text not escaped: %s", stub.lastTwiml)
	}
	if !strings.Contains(stub.lastTwiml, "<Hangup/>") {
		t.Fatalf("hangup missing: %s", stub.lastTwiml)
	}
}

func TestRedirectSayRequiresCallSID(t *testing.T) {
	d := NewDialer(Config{AccountSID: "AC1", AuthToken: "token"})
	d.updater = &stubCallUpdater{}
	if err := d.RedirectSay(context.Background(), "", "notice"); err == nil {
		t.Fatalf("expected error without call sid")
	}
}

func TestVoiceWebhookURLLocalFallback(t *testing.T) {
	d := NewDialer(Config{AccountSID: "AC1", AuthToken: "token"})
	if got := d.voiceWebhookURL(); got != "http://localhost:8082/incoming" {
		t.Fatalf("unexpected webhook url %s", got)
	}
}
