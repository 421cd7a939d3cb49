package provider

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/jonathan/cv-publisher/internal/logfields"
	"github.com/jonathan/cv-publisher/internal/types"
)

// maxEventLine bounds one NDJSON line.
const maxEventLine = 1 << 20

// ndjsonStream reads newline-delimited JSON events from an HTTP body.
type ndjsonStream struct {
	ctx     context.Context
	cancel  context.CancelFunc
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  *slog.Logger
	once    sync.Once
}

func newNDJSONStream(ctx context.Context, cancel context.CancelFunc, body io.ReadCloser, logger *slog.Logger) *ndjsonStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxEventLine)
	return &ndjsonStream{ctx: ctx, cancel: cancel, body: body, scanner: scanner, logger: logger}
}

// wireEvent accepts both the flat log shape and the newer payload shape.
type wireEvent struct {
	Type    string `json:"type"`
	Text    string `json:"text"`
	Created int64  `json:"created"`
	Payload *struct {
		Text    string `json:"text"`
		Created int64  `json:"date"`
	} `json:"payload"`
}

// Next returns the next decodable event. Blank and malformed lines are
// skipped.
func (s *ndjsonStream) Next() (Event, error) {
	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var w wireEvent
		if err := json.Unmarshal(line, &w); err != nil {
			s.logger.Debug("Skipping malformed event line", logfields.Error(err))
			continue
		}
		ev := Event{Type: w.Type, Text: w.Text, Created: w.Created}
		if ev.Text == "" && w.Payload != nil {
			ev.Text = w.Payload.Text
			if ev.Created == 0 {
				ev.Created = w.Payload.Created
			}
		}
		return ev, nil
	}

	if err := s.ctx.Err(); err != nil {
		return Event{}, err
	}
	if err := s.scanner.Err(); err != nil {
		return Event{}, &Error{Kind: types.ErrorNetwork, Op: "stream build events", Message: "stream read failed", Cause: err}
	}
	return Event{}, io.EOF
}

// Close cancels the request and closes the body.
func (s *ndjsonStream) Close() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		err = s.body.Close()
	})
	return err
}
