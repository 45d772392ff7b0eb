package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/coriolis-robotics/teleop/internal/wire"
)

// DirectLedgerTransport is the Gateway-only transport: its publisher
// writes straight to the audit ledger's ingest endpoint rather than
// looping back through its own /v1/audit route, per §4.14 ("Gateway
// side writes directly to the ledger transport"). The ledger's
// consensus mechanism is an external collaborator (§1); this is the
// narrow HTTP interface through which it is consumed.
type DirectLedgerTransport struct {
	URL    string
	Client *http.Client
}

func NewDirectLedgerTransport(url string) *DirectLedgerTransport {
	return &DirectLedgerTransport{URL: url, Client: &http.Client{Timeout: 5 * time.Second}}
}

func (t *DirectLedgerTransport) Send(ctx context.Context, event wire.AuditEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		slog.Error("audit: ledger unreachable", "error", err)
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return errStatus(resp.StatusCode)
	}
	return nil
}
