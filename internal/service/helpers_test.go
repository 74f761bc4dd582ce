package service

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/nevera/nevera_server/config"
)

// fakeGenerator replays canned AI replies; with no replies queued it
// fails like an unreachable model.
type fakeGenerator struct {
	mu      sync.Mutex
	replies []string
	prompts []string
	fail    bool
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.prompts = append(f.prompts, prompt)
	if f.fail || len(f.replies) == 0 {
		return "", errors.New("model unavailable")
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

// fakeSender records outbound WhatsApp messages.
type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	fail bool
}

type sentMessage struct {
	Phone string
	Text  string
}

func (f *fakeSender) Send(_ context.Context, phone, text string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		return false, errors.New("transport down")
	}
	f.sent = append(f.sent, sentMessage{Phone: phone, Text: text})
	return true, nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return cfg
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
