package telephony

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type callCreator interface {
	CreateCall(params *api.CreateCallParams) (*api.ApiV2010Call, error)
}

type callUpdater interface {
	UpdateCall(sid string, params *api.UpdateCallParams) (*api.ApiV2010Call, error)
}

// Dialer places outbound calls via the provider's REST API, pointing the
// call at this server's voice webhook, and redirects in-progress calls to
// replacement call-control markup.
type Dialer struct {
	cfg     Config
	client  callCreator
	updater callUpdater
}

func NewDialer(cfg Config) *Dialer {
	return &Dialer{cfg: cfg.withDefaults()}
}

// Dial places an outbound call and returns the provider call identifier.
func (d *Dialer) Dial(ctx context.Context, to, from string) (string, error) {
	_ = ctx
	if to == "" || from == "" {
		return "", errors.New("to/from required")
	}
	if d.cfg.AccountSID == "" || d.cfg.AuthToken == "" {
		return "", errors.New("missing twilio credentials")
	}
	client := d.client
	if client == nil {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: d.cfg.AccountSID,
			Password: d.cfg.AuthToken,
		})
		client = rest.Api
	}
	params := &api.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetUrl(d.voiceWebhookURL())
	resp, err := client.CreateCall(params)
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Sid == nil {
		return "", fmt.Errorf("missing call sid")
	}
	return *resp.Sid, nil
}

// RedirectSay points an in-progress call at markup that speaks the given
// text and hangs up. Used to deliver a spoken notice when the media stream
// cannot be serviced.
func (d *Dialer) RedirectSay(ctx context.Context, callSID, text string) error {
	_ = ctx
	if callSID == "" || strings.TrimSpace(text) == "" {
		return errors.New("call sid and text required")
	}
	if d.cfg.AccountSID == "" || d.cfg.AuthToken == "" {
		return errors.New("missing twilio credentials")
	}
	updater := d.updater
	if updater == nil {
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: d.cfg.AccountSID,
			Password: d.cfg.AuthToken,
		})
		updater = rest.Api
	}
	twiml := `<Response>` + sayElement(d.cfg.GreetingVoice, d.cfg.GreetingLanguage, text) + `<Hangup/></Response>`
	params := &api.UpdateCallParams{}
	params.SetTwiml(twiml)
	_, err := updater.UpdateCall(callSID, params)
	return err
}

func (d *Dialer) voiceWebhookURL() string {
	if d.cfg.PublicURL != "" {
		return "https://" + normalizePublicURL(d.cfg.PublicURL) + d.cfg.VoicePath
	}
	addr := d.cfg.ServerAddr
	if addr[0] == ':' {
		addr = "localhost" + addr
	}
	return "http://" + addr + d.cfg.VoicePath
}
