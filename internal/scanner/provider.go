package scanner

import (
	"context"

	"github.com/complywatch/complywatch/internal/models"
)

// ScanProvider is the narrow contract of the external compliance scan
// service. The engine treats it as an opaque, potentially slow, potentially
// failing remote call; the scan logic itself (HTML parsing, legal-text
// heuristics) lives behind this interface.
type ScanProvider interface {
	// Scan runs a compliance scan of the given URL. The context carries the
	// scan timeout and process shutdown cancellation. Failures should be
	// returned as *models.ScanFailure where the provider can classify them.
	Scan(ctx context.Context, url string) (*models.ScanResult, error)
}
