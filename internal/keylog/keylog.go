// Package keylog implements an NSS Key Log Format sink (the format
// Wireshark and tshark consume to decrypt captured TLS traffic), owned by
// a session and written to from whichever backend derives the secret.
// crypto/tls and utls write pre-formatted lines to their KeyLogWriter;
// tlssession's keyLogShim parses each line back into a
// label/clientRandom/secret triple, so this package only needs to own
// the destination file, format the line, and serialize concurrent writes.
package keylog

import (
	"encoding/hex"
	"fmt"
	"io"
	"sync"
)

// Writer appends NSS Key Log Format lines to an underlying io.Writer,
// one complete line per call, safe for concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// New wraps w as a key-log destination.
func New(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteKeyLogLine implements tlssession.KeyLogWriter. label is one of the
// NSS-defined labels (CLIENT_RANDOM, CLIENT_HANDSHAKE_TRAFFIC_SECRET,
// SERVER_HANDSHAKE_TRAFFIC_SECRET, CLIENT_TRAFFIC_SECRET_0,
// SERVER_TRAFFIC_SECRET_0, EXPORTER_SECRET, ...).
func (k *Writer) WriteKeyLogLine(label string, clientRandom, secret []byte) error {
	line := fmt.Sprintf("%s %s %s\n", label, hex.EncodeToString(clientRandom), hex.EncodeToString(secret))
	k.mu.Lock()
	defer k.mu.Unlock()
	_, err := io.WriteString(k.w, line)
	return err
}
