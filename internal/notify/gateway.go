package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
)

// gatewaySender launches a token-authenticated session on the telephony
// gateway, which runs a server-side script that places the SMS or voice
// call. There is no client-side destination validation; rejections past this
// POST are reported asynchronously by the gateway and treated as lost.
//
// The parameter name for the message body differs per medium ("messageBody"
// for SMS, "msg" for voice) because the server-side scripts differ.
type gatewaySender struct {
	cfg      GatewayConfig
	tokenEnv string
	msgParam string
	client   *http.Client
}

func newGatewaySender(cfg GatewayConfig, tokenEnv, msgParam string) *gatewaySender {
	return &gatewaySender{
		cfg:      cfg,
		tokenEnv: tokenEnv,
		msgParam: msgParam,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *gatewaySender) send(ctx context.Context, p Payload) error {
	token := os.Getenv(g.tokenEnv)
	if token == "" {
		return fmt.Errorf("%w: %s not set", ErrMissingCredentials, g.tokenEnv)
	}

	body := map[string]string{
		"token":       token,
		"phoneNumber": p.Destination,
		g.msgParam:    p.Message,
	}
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.SessionURL, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway session: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway session rejected: %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}
	return nil
}
