package link

import (
	"bytes"
	"errors"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/OpenTraceLab/OpenTraceProbe/pkg/probe"
)

func payload(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i * 7)
	}
	return b
}

func TestStreamShortOverPipe(t *testing.T) {
	host, head := net.Pipe()
	pipeHead(t, head, func(line string, w io.Writer) {
		io.WriteString(w, "{\"size\":1000}\n")
		w.Write(payload(400))
		head.Close()
	})

	c := NewClient(NewConnPort(host, 5*time.Millisecond), nil)
	defer c.Close()

	var sink bytes.Buffer
	res, err := c.Stream(NewCommand("SPI_DUMP"), &sink, time.Second)
	if !errors.Is(err, probe.ErrShortStream) || !probe.IsProtocol(err) {
		t.Fatalf("Stream error = %v, want ProtocolError wrapping ErrShortStream", err)
	}
	if sink.Len() != 400 {
		t.Fatalf("sink holds %d bytes, want 400", sink.Len())
	}
	if !bytes.Equal(sink.Bytes(), payload(400)) {
		t.Fatal("sink content differs from the streamed bytes")
	}
	if res.Declared != 1000 || res.Received != 400 || !res.Truncated() {
		t.Fatalf("result = %+v", res)
	}
}

func TestStreamComplete(t *testing.T) {
	for _, size := range []int{0, 1, 4096, 10000} {
		data := payload(size)
		p := &memPort{reply: replyWith("{\"size\":" + strconv.Itoa(size) + "}\n" + string(data))}
		c := NewClient(p, nil)

		var sink bytes.Buffer
		res, err := c.Stream(NewCommand("SPI_DUMP"), &sink, time.Second)
		if err != nil {
			t.Fatalf("size %d: Stream: %v", size, err)
		}
		if res.Truncated() || res.Received != int64(size) {
			t.Fatalf("size %d: result = %+v", size, res)
		}
		if !bytes.Equal(sink.Bytes(), data) {
			t.Fatalf("size %d: sink content mismatch", size)
		}
	}
}

func TestStreamIgnoresTrailingBytes(t *testing.T) {
	p := &memPort{reply: replyWith("{\"size\":4}\nABCDEFGH")}
	c := NewClient(p, nil)

	var sink bytes.Buffer
	if _, err := c.Stream(NewCommand("I2C_DUMP"), &sink, time.Second); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	if got := sink.String(); got != "ABCD" {
		t.Fatalf("sink = %q, want ABCD", got)
	}
}

func TestStreamStallsWithoutClose(t *testing.T) {
	p := &memPort{reply: replyWith("{\"size\":10}\n1234")}
	c := NewClient(p, nil)

	var sink bytes.Buffer
	res, err := c.Stream(NewCommand("JTAG_DUMP"), &sink, 40*time.Millisecond)
	if !errors.Is(err, probe.ErrShortStream) {
		t.Fatalf("Stream = %v, want ErrShortStream", err)
	}
	if res.Received != 4 || sink.String() != "1234" {
		t.Fatalf("result = %+v, sink = %q", res, sink.String())
	}
}

func TestStreamBadHeader(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		close bool
	}{
		{"not json", "garbage\n", false},
		{"missing size", "{\"len\":4}\nABCD", false},
		{"negative size", "{\"size\":-1}\n", false},
		{"string size", "{\"size\":\"4\"}\nABCD", false},
		{"firmware error", "{\"error\":\"no flash\"}\n", false},
		{"silence", "", false},
		{"closed", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &memPort{reply: replyWith(tt.reply), closeAfter: tt.close}
			c := NewClient(p, nil)

			var sink bytes.Buffer
			res, err := c.Stream(NewCommand("SPI_DUMP"), &sink, 30*time.Millisecond)
			if !errors.Is(err, probe.ErrBadHeader) || !probe.IsProtocol(err) {
				t.Fatalf("Stream = %v, want ProtocolError wrapping ErrBadHeader", err)
			}
			if sink.Len() != 0 {
				t.Fatalf("sink received %d bytes after a bad header", sink.Len())
			}
			if res != (StreamResult{}) {
				t.Fatalf("result = %+v, want zero", res)
			}
		})
	}
}

type failingSink struct{ err error }

func (f failingSink) Write([]byte) (int, error) { return 0, f.err }

func TestStreamSinkFailure(t *testing.T) {
	p := &memPort{reply: replyWith("{\"size\":4}\nABCD")}
	c := NewClient(p, nil)

	diskFull := errors.New("disk full")
	_, err := c.Stream(NewCommand("SPI_DUMP"), failingSink{diskFull}, time.Second)
	if !errors.Is(err, diskFull) {
		t.Fatalf("Stream = %v, want the sink error", err)
	}
	if probe.IsProtocol(err) {
		t.Fatal("sink failure reported as a protocol error")
	}
}
