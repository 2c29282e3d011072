package ring

import (
	"io"
	"testing"
)

func TestRingBufferFIFOOrder(t *testing.T) {
	rb := New(MinCapacityBlocks)
	want := make([]byte, BlockSize*40)
	for i := range want {
		want[i] = byte(i)
	}

	done := make(chan error, 1)
	go func() {
		_, err := rb.Write(want)
		done <- rb.WriterClose(err)
	}()

	got := make([]byte, 0, len(want))
	buf := make([]byte, 513) // odd read size to exercise arbitrary block sizes
	for {
		n, err := rb.Read(buf)
		got = append(got, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read error: %v", err)
		}
	}
	if err := <-done; err != nil {
		t.Fatalf("writer close error: %v", err)
	}

	if len(got) != len(want) {
		t.Fatalf("got %d bytes, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d reordered or corrupted: got %x want %x", i, got[i], want[i])
		}
	}

	status, _ := rb.Status()
	if status != StatusEnded {
		t.Fatalf("status = %v, want ended", status)
	}
}
