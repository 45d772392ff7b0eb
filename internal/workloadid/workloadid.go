// Package workloadid provides SPIFFE-based workload identity for the
// mTLS service channel between the Gateway and Robot Agent processes,
// adapted from the teacher's SPIFFE integration.
package workloadid

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/spiffe/go-spiffe/v2/spiffeid"
	"github.com/spiffe/go-spiffe/v2/spiffetls/tlsconfig"
	"github.com/spiffe/go-spiffe/v2/workloadapi"
)

// Identity wraps an X.509 SVID source used to authenticate a process
// (Gateway or Robot Agent) as a SPIFFE workload, independent of the
// capability-token layer used for operator/robot session auth.
type Identity struct {
	source *workloadapi.X509Source
}

// NewIdentity connects to the local SPIRE agent over socketPath. Uses a
// bounded timeout so a missing SPIRE agent never blocks process
// startup indefinitely.
func NewIdentity(socketPath string) (*Identity, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	source, err := workloadapi.NewX509Source(
		ctx,
		workloadapi.WithClientOptions(workloadapi.WithAddr(socketPath)),
	)
	if err != nil {
		return nil, fmt.Errorf("workloadid: connect to SPIRE agent: %w", err)
	}

	slog.Info("workloadid: connected to SPIRE agent", "socket_path", socketPath)
	return &Identity{source: source}, nil
}

// Expect verifies that the locally issued SVID matches the expected
// SPIFFE ID for this process role.
func (id *Identity) Expect(expected string) error {
	want, err := spiffeid.FromString(expected)
	if err != nil {
		return fmt.Errorf("workloadid: invalid SPIFFE ID %q: %w", expected, err)
	}

	svid, err := id.source.GetX509SVID()
	if err != nil {
		return fmt.Errorf("workloadid: fetch SVID: %w", err)
	}
	if svid.ID.String() != want.String() {
		return fmt.Errorf("workloadid: SPIFFE ID mismatch: expected %s, got %s", want, svid.ID)
	}
	return nil
}

// ServerTLSConfig returns an mTLS server config authorizing any peer
// presenting a valid SVID from the shared trust domain; the Gateway
// narrows further by checking expected client IDs at the handshake
// callback layer if needed.
func (id *Identity) ServerTLSConfig() *tls.Config {
	return tlsconfig.MTLSServerConfig(id.source, id.source, tlsconfig.AuthorizeAny())
}

// ClientTLSConfig returns an mTLS client config for the Robot Agent
// dialing the Gateway's service channel.
func (id *Identity) ClientTLSConfig() *tls.Config {
	return tlsconfig.MTLSClientConfig(id.source, id.source, tlsconfig.AuthorizeAny())
}

func (id *Identity) Close() error {
	return id.source.Close()
}

// RobotSPIFFEID builds the canonical SPIFFE ID for a robot endpoint
// within a trust domain, e.g. spiffe://teleop.example.com/robot/rbt-042.
func RobotSPIFFEID(trustDomain, robotID string) string {
	return fmt.Sprintf("spiffe://%s/robot/%s", trustDomain, robotID)
}

// GatewaySPIFFEID builds the canonical SPIFFE ID for the Gateway
// process within a trust domain.
func GatewaySPIFFEID(trustDomain string) string {
	return fmt.Sprintf("spiffe://%s/gateway", trustDomain)
}
