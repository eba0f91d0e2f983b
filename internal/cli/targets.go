package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/roach88/spotter/internal/engine"
	"github.com/roach88/spotter/internal/ir"
)

// WebhookCall is the JSON body a webhook target receives.
type WebhookCall struct {
	OperationHash common.Hash   `json:"operation_hash"`
	Protocol      ir.ProtocolID `json:"protocol_id"`
	Target        ir.Account    `json:"target"`
	Selector      ir.Selector   `json:"function_selector"`
	Params        hexutil.Bytes `json:"params"`
	SrcChainID    uint64        `json:"src_chain_id"`
	Seq           int64         `json:"seq"`
}

// webhookTarget posts executed operations to an HTTP endpoint.
// A non-2xx response fails the call and the execution is rolled back.
type webhookTarget struct {
	url    string
	client *http.Client
}

func newWebhookTarget(url string) *webhookTarget {
	return &webhookTarget{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (t *webhookTarget) Invoke(ctx context.Context, call engine.Call) error {
	body, err := json.Marshal(WebhookCall{
		OperationHash: call.OperationHash,
		Protocol:      call.Protocol,
		Target:        call.Target,
		Selector:      call.Selector,
		Params:        call.Params,
		SrcChainID:    call.SrcChainID,
		Seq:           call.Seq,
	})
	if err != nil {
		return fmt.Errorf("encode call: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", t.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("post %s: status %d", t.url, resp.StatusCode)
	}
	return nil
}

// logTarget accepts every call and logs it.
func logTarget(logger *slog.Logger) engine.Target {
	return engine.TargetFunc(func(_ context.Context, call engine.Call) error {
		logger.Info("target call",
			"target", call.Target,
			"protocol", call.Protocol.String(),
			"selector", call.Selector.String(),
			"params", hexutil.Encode(call.Params),
			"hash", call.OperationHash.Hex(),
			"seq", call.Seq,
		)
		return nil
	})
}

// parseTargets builds engine options from --target addr=url and
// --log-target addr values.
func parseTargets(webhooks, logged []string, logger *slog.Logger) ([]engine.Option, error) {
	var opts []engine.Option
	for _, spec := range webhooks {
		addr, url, ok := strings.Cut(spec, "=")
		if !ok || url == "" {
			return nil, fmt.Errorf("target %q: want <address>=<url>", spec)
		}
		acct, err := ir.ParseAccount(addr)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", spec, err)
		}
		opts = append(opts, engine.WithTarget(acct, newWebhookTarget(url)))
	}
	for _, addr := range logged {
		acct, err := ir.ParseAccount(addr)
		if err != nil {
			return nil, fmt.Errorf("log target %q: %w", addr, err)
		}
		opts = append(opts, engine.WithTarget(acct, logTarget(logger)))
	}
	return opts, nil
}
