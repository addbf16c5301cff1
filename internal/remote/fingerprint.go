package remote

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/trlogic/tracker-web/internal/host"
)

// Fingerprinter produces an opaque device identifier for the session.
type Fingerprinter interface {
	DeviceFingerprint(ctx context.Context) (string, error)
}

// HostFingerprinter derives a stable fingerprint by hashing the host's
// observable characteristics. Stable across sessions on the same
// environment; not resistant to spoofing, which matches the collaborator's
// opaque-string contract.
type HostFingerprinter struct {
	host host.Host
}

// NewHostFingerprinter creates a fingerprinter reading from the given host.
func NewHostFingerprinter(h host.Host) *HostFingerprinter {
	return &HostFingerprinter{host: h}
}

// DeviceFingerprint hashes user agent, locale, timezone, viewport, and
// hardware characteristics into a hex digest.
func (f *HostFingerprinter) DeviceFingerprint(_ context.Context) (string, error) {
	nav := f.host.Navigator()
	width, height := f.host.Viewport()

	material := fmt.Sprintf("%s|%s|%s|%s|%dx%d|%d|%d",
		nav.UserAgent(),
		nav.Language(),
		strings.Join(nav.Languages(), ","),
		nav.Timezone(),
		width, height,
		nav.HardwareConcurrency(),
		nav.PluginCount(),
	)

	digest := sha256.Sum256([]byte(material))
	return hex.EncodeToString(digest[:]), nil
}
