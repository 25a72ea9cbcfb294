// Package piper implements tts.Synthesizer on top of Piper.
//
// Two engines are provided. CLI runs the piper binary against a trained model
// and reads the WAV it writes. Wyoming talks to a Piper server over the
// Wyoming protocol and is used for the generic stock voices.
//
// A Wyoming event is a JSON header line, then data_length bytes of JSON
// event data, then payload_length bytes of binary payload:
//
//	{"type":"audio-chunk","version":"1.5.0","data_length":42,"payload_length":2048}\n
//	{"rate":22050,"width":2,"channels":1}
//	<pcm...>
package piper

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/nadzzz/avatarvoice/internal/errs"
	"github.com/nadzzz/avatarvoice/internal/tts"
	"github.com/nadzzz/avatarvoice/internal/wav"
)

// Wyoming implements tts.Synthesizer using the Wyoming protocol.
type Wyoming struct {
	endpoint string // host:port of the Piper Wyoming server
}

// NewWyoming creates a Wyoming client for endpoint. tcp:// and http:// prefixes are stripped.
func NewWyoming(endpoint string) *Wyoming {
	endpoint = strings.TrimPrefix(endpoint, "tcp://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return &Wyoming{endpoint: endpoint}
}

// Synthesize sends text to the Piper server and returns synthesized audio as WAV.
func (s *Wyoming) Synthesize(ctx context.Context, text string, opts tts.SynthesizeOpts) (*tts.SynthesizeResult, error) {
	const op = "piper.wyoming"

	switch {
	case text == "":
		return nil, errs.New(errs.KindInput, op, "empty text for synthesis")
	case opts.Voice == "":
		return nil, errs.New(errs.KindExternalTool, op, "no stock voice selected")
	case s.endpoint == "":
		return nil, errs.New(errs.KindExternalTool, op, "no piper endpoint configured")
	}

	logger := slog.With("endpoint", s.endpoint, "voice", opts.Voice)
	logger.Debug("wyoming synthesize", "text_length", len(text))

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", s.endpoint)
	if err != nil {
		return nil, errs.Wrap(errs.KindExternalTool, op, "connecting to piper", err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultIOTimeout)
	}
	_ = conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	req := synthesizeData{Text: text}
	req.Voice.Name = opts.Voice
	if err := writeEvent(conn, "synthesize", req, nil); err != nil {
		return nil, errs.Wrap(errs.KindExternalTool, op, "sending synthesize event", err)
	}

	r := bufio.NewReader(conn)
	info := audioInfo{Rate: 22050, Width: 2, Channels: 1}
	var pcm bytes.Buffer

	for {
		evt, err := readEvent(r)
		if err != nil {
			return nil, errs.Wrap(errs.KindExternalTool, op, "reading piper event", err)
		}

		switch evt.Type {
		case "audio-start":
			if err := evt.decode(&info); err != nil {
				return nil, errs.Wrap(errs.KindExternalTool, op, "decoding audio-start", err)
			}
			logger.Debug("audio started", "rate", info.Rate, "width", info.Width, "channels", info.Channels)
		case "audio-chunk":
			pcm.Write(evt.Payload)
		case "audio-stop":
			f := wav.Format{SampleRate: info.Rate, Channels: info.Channels, BitsPerSample: info.Width * 8}
			logger.Debug("audio stopped", "pcm_bytes", pcm.Len())
			return &tts.SynthesizeResult{Audio: wav.Encode(pcm.Bytes(), f), Format: f}, nil
		case "error":
			var e errorData
			_ = evt.decode(&e)
			if e.Text == "" {
				e.Text = "unknown error"
			}
			return nil, errs.New(errs.KindExternalTool, op, "piper error: "+e.Text)
		default:
			logger.Debug("ignoring event", "type", evt.Type)
		}
	}
}

// Close is a no-op; connections are per-request.
func (s *Wyoming) Close() error { return nil }

const (
	protocolVersion  = "1.5.0"
	maxHeaderBytes   = 4096
	dialTimeout      = 10 * time.Second
	defaultIOTimeout = 30 * time.Second
)

type synthesizeData struct {
	Text  string `json:"text"`
	Voice struct {
		Name string `json:"name"`
	} `json:"voice"`
}

type audioInfo struct {
	Rate     int `json:"rate"`
	Width    int `json:"width"`
	Channels int `json:"channels"`
}

type errorData struct {
	Text string `json:"text"`
}

type header struct {
	Type          string          `json:"type"`
	Version       string          `json:"version,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
	DataLength    int             `json:"data_length,omitempty"`
	PayloadLength int             `json:"payload_length,omitempty"`
}

// event is a decoded Wyoming event. Data holds the event's JSON data,
// whether it arrived inline in the header or as a separate section.
type event struct {
	Type    string
	Data    json.RawMessage
	Payload []byte
}

func (e event) decode(v any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, v)
}

func writeEvent(w io.Writer, typ string, data any, payload []byte) error {
	h := header{Type: typ, Version: protocolVersion, PayloadLength: len(payload)}

	var body []byte
	if data != nil {
		var err error
		if body, err = json.Marshal(data); err != nil {
			return fmt.Errorf("encoding %s data: %w", typ, err)
		}
		h.DataLength = len(body)
	}

	line, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("encoding %s header: %w", typ, err)
	}

	var buf bytes.Buffer
	buf.Grow(len(line) + 1 + len(body) + len(payload))
	buf.Write(line)
	buf.WriteByte('\n')
	buf.Write(body)
	buf.Write(payload)
	_, err = w.Write(buf.Bytes())
	return err
}

func readEvent(r *bufio.Reader) (event, error) {
	line, err := readLine(r)
	if err != nil {
		return event{}, err
	}

	var h header
	if err := json.Unmarshal(line, &h); err != nil {
		return event{}, fmt.Errorf("invalid event header %q: %w", truncate(line), err)
	}
	if h.Type == "" || h.DataLength < 0 || h.PayloadLength < 0 {
		return event{}, fmt.Errorf("invalid event header %q", truncate(line))
	}

	evt := event{Type: h.Type, Data: h.Data}
	if h.DataLength > 0 {
		data := make([]byte, h.DataLength)
		if _, err := io.ReadFull(r, data); err != nil {
			return event{}, fmt.Errorf("reading %s data: %w", h.Type, err)
		}
		evt.Data = data
	}
	if h.PayloadLength > 0 {
		evt.Payload = make([]byte, h.PayloadLength)
		if _, err := io.ReadFull(r, evt.Payload); err != nil {
			return event{}, fmt.Errorf("reading %s payload: %w", h.Type, err)
		}
	}
	return evt, nil
}

// readLine returns the next header line without its newline.
func readLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > maxHeaderBytes {
			return nil, fmt.Errorf("event header exceeds %d bytes", maxHeaderBytes)
		}
		switch err {
		case nil:
			return bytes.TrimRight(line, "\r\n"), nil
		case bufio.ErrBufferFull:
			continue
		default:
			return nil, fmt.Errorf("reading event header: %w", err)
		}
	}
}

func truncate(b []byte) string {
	const n = 64
	if len(b) > n {
		return string(b[:n]) + "..."
	}
	return string(b)
}
