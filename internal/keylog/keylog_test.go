package keylog

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

func TestWriteKeyLogLineFormatsNSSLine(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	clientRandom := []byte{0x01, 0x02, 0x03}
	secret := []byte{0xAA, 0xBB}
	if err := w.WriteKeyLogLine("CLIENT_RANDOM", clientRandom, secret); err != nil {
		t.Fatal(err)
	}

	want := "CLIENT_RANDOM 010203 aabb\n"
	if buf.String() != want {
		t.Fatalf("got %q, want %q", buf.String(), want)
	}
}

func TestWriteKeyLogLineConcurrentSafe(t *testing.T) {
	var buf bytes.Buffer
	w := New(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = w.WriteKeyLogLine("CLIENT_RANDOM", []byte{0x01}, []byte{0x02})
		}()
	}
	wg.Wait()

	lines := strings.Count(buf.String(), "\n")
	if lines != 50 {
		t.Fatalf("got %d lines, want 50", lines)
	}
}
