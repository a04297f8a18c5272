package caption

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/voxstream/transcribe-gateway/internal/engine"
)

func TestSession_EndToEnd(t *testing.T) {
	eng := &scriptedEngine{results: []scriptedResult{
		{result: segments(engine.Segment{Text: "live caption", Start: 0, End: 1.5})},
	}}
	notifier := &recordingNotifier{}
	s := NewSession(DefaultConfig(), loadedHandle(eng), notifier, zerolog.Nop())

	s.Start(context.Background())
	s.Push(speech(16000))
	s.Push(speech(16000))
	s.Close()

	statuses := notifier.allStatuses()
	if len(statuses) == 0 || statuses[0] != "Listening..." {
		t.Fatalf("Expected session to announce Listening..., got %v", statuses)
	}
	got := notifier.allSubtitles()
	if len(got) != 1 || got[0] != "live caption" {
		t.Fatalf("Expected subtitle from pushed audio, got %v", got)
	}
}
