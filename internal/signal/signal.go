// Package signal stores captured remote control signals on disk.
//
// A capture is the blaster's internal encoding of whatever the remote
// sent. The bytes are opaque: devices replay exactly what they
// captured, and nothing on this side inspects the encoding. Files hold
// the raw bytes verbatim so captures can be shared between hosts or
// produced by other tooling.
package signal

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// SignalKind labels which radio a capture came from. The wire protocol
// does not distinguish them; the kind exists for file naming and
// display.
type SignalKind int

const (
	KindIR SignalKind = iota
	KindRF433
)

// String returns a human-readable kind name
func (k SignalKind) String() string {
	if k == KindRF433 {
		return "rf433"
	}
	return "ir"
}

// ParseKind maps a user-facing name to a signal kind.
func ParseKind(s string) (SignalKind, error) {
	switch s {
	case "ir":
		return KindIR, nil
	case "rf", "rf433":
		return KindRF433, nil
	default:
		return KindIR, fmt.Errorf("unknown signal kind %q (want ir or rf433)", s)
	}
}

// Capture is one recorded remote control signal.
type Capture struct {
	Kind SignalKind
	Data []byte
}

// Fingerprint returns a short stable digest of the signal bytes for
// display. Two captures of the same button usually differ at the byte
// level, so a matching fingerprint means the same capture, not the
// same button.
func (c *Capture) Fingerprint() string {
	sum := sha256.Sum256(c.Data)
	return hex.EncodeToString(sum[:4])
}

// Save writes the capture to path, creating parent directories as
// needed. The write goes through a temporary file and a rename so a
// crash cannot leave a half-written signal behind.
func Save(path string, c *Capture) error {
	if c == nil || len(c.Data) == 0 {
		return fmt.Errorf("refusing to save empty signal to %s", path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create signal directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, c.Data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary signal file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save signal file: %w", err)
	}

	return nil
}

// Load reads a capture back from path. The bytes are opaque; the only
// check is that the file is not empty.
func Load(path string, kind SignalKind) (*Capture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read signal file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("signal file %s is empty", path)
	}
	return &Capture{Kind: kind, Data: data}, nil
}
