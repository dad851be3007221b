package bep

import (
	"errors"
	"io"
	"os"

	"github.com/zachgrayio/bkvalidate/src/cli/logging"
	"github.com/zachgrayio/bkvalidate/src/core"
)

var log = logging.Log

// Stream reads events from r and calls f for each one, in order.
// Events that fail to decode are logged and skipped; it returns the number skipped.
// Framing errors (e.g. a truncated stream) stop the read and are returned.
func Stream(r io.Reader, f func(*Event)) (int, error) {
	reader := NewReader(r)
	skipped := 0
	for {
		msg, err := reader.Next()
		if err == io.EOF {
			return skipped, nil
		} else if err != nil {
			return skipped, err
		}
		event, err := Decode(msg)
		if err != nil {
			log.Warning("Skipping build event: %s", err)
			skipped++
			continue
		}
		f(event)
	}
}

// ReadAll reads all the events from r.
func ReadAll(r io.Reader) ([]*Event, error) {
	events := []*Event{}
	_, err := Stream(r, func(event *Event) {
		events = append(events, event)
	})
	return events, err
}

// ReadFile reads all the events from the given file.
// A truncated file still returns the events read before the truncation, along with an error.
func ReadFile(filename string) ([]*Event, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	events, err := ReadAll(f)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		log.Warning("Build event file %s is truncated after %d events", filename, len(events))
	}
	return events, err
}

// IsMalformed returns true if the error came from a message that couldn't be decoded.
func IsMalformed(err error) bool {
	return errors.Is(err, core.ErrMalformedEvent)
}
