package tlssession

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
)

// keyLogShim adapts a KeyLogWriter (label, clientRandom, secret) to the
// io.Writer both crypto/tls.Config.KeyLogWriter and utls.Config.KeyLogWriter
// expect: the library formats and writes one complete NSS Key Log Format
// line per call, and this shim parses that line back apart so the sink
// never has to know which backend produced it.
type keyLogShim struct {
	sink KeyLogWriter
}

func (s keyLogShim) Write(p []byte) (int, error) {
	scanner := bufio.NewScanner(bytes.NewReader(p))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := bytesFields(line)
		if len(fields) != 3 {
			return 0, fmt.Errorf("tlssession: malformed key log line %q", line)
		}
		clientRandom, err := hex.DecodeString(fields[1])
		if err != nil {
			return 0, fmt.Errorf("tlssession: key log client random: %w", err)
		}
		secret, err := hex.DecodeString(fields[2])
		if err != nil {
			return 0, fmt.Errorf("tlssession: key log secret: %w", err)
		}
		if err := s.sink.WriteKeyLogLine(fields[0], clientRandom, secret); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func bytesFields(line string) []string {
	var fields []string
	start := -1
	for i, r := range line {
		if r == ' ' {
			if start >= 0 {
				fields = append(fields, line[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, line[start:])
	}
	return fields
}

var _ io.Writer = keyLogShim{}
