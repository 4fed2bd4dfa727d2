package gateway

import (
	"context"
	"errors"
	"testing"

	"github.com/quillreads/voicenotes/internal/config"
	"github.com/quillreads/voicenotes/pkg/stt"
	"github.com/quillreads/voicenotes/pkg/stt/mock"
)

func allReady(string) config.ProviderStatus { return config.StatusReady }

func policy(primary, secondary string) config.FallbackPolicy {
	return config.FallbackPolicy{Primary: primary, Secondary: secondary}
}

func TestTranscribe_PrimarySucceeds(t *testing.T) {
	primary := &mock.Transcriber{Result: &stt.Result{Text: "from primary", Provider: "elevenlabs"}}
	secondary := &mock.Transcriber{Result: &stt.Result{Text: "from secondary", Provider: "deepgram"}}

	g := New(policy("elevenlabs", "deepgram"), allReady, map[string]Factory{
		"elevenlabs": func() (stt.Transcriber, error) { return primary, nil },
		"deepgram":   func() (stt.Transcriber, error) { return secondary, nil },
	})

	res, err := g.Transcribe(context.Background(), []byte("audio"), "audio/webm")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "from primary" {
		t.Fatalf("text = %q, want from primary", res.Text)
	}
	if secondary.CallCount() != 0 {
		t.Fatal("secondary must not be invoked after primary success")
	}
}

func TestTranscribe_PrimaryFailsSecondarySucceeds(t *testing.T) {
	primary := &mock.Transcriber{Err: stt.NewError("elevenlabs", stt.CodeRateLimited, "429")}
	secondary := &mock.Transcriber{Result: &stt.Result{Text: "from secondary", Provider: "deepgram"}}
	thirdConstructed := false

	g := New(policy("elevenlabs", "deepgram"), allReady, map[string]Factory{
		"elevenlabs": func() (stt.Transcriber, error) { return primary, nil },
		"deepgram":   func() (stt.Transcriber, error) { return secondary, nil },
		"assemblyai": func() (stt.Transcriber, error) {
			thirdConstructed = true
			return &mock.Transcriber{}, nil
		},
	})

	res, err := g.Transcribe(context.Background(), []byte("audio"), "audio/webm")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "from secondary" {
		t.Fatalf("text = %q, want from secondary", res.Text)
	}
	if thirdConstructed {
		t.Fatal("a provider outside the policy must never be constructed")
	}
}

func TestTranscribe_DuplicatePolicyConstructsOnce(t *testing.T) {
	constructions := 0
	provider := &mock.Transcriber{Err: stt.NewError("elevenlabs", stt.CodeProviderError, "down")}

	g := New(policy("elevenlabs", "elevenlabs"), allReady, map[string]Factory{
		"elevenlabs": func() (stt.Transcriber, error) {
			constructions++
			return provider, nil
		},
	})

	if _, err := g.Transcribe(context.Background(), []byte("audio"), "audio/webm"); err == nil {
		t.Fatal("expected error when the only provider fails")
	}
	if constructions != 1 {
		t.Fatalf("constructions = %d, want 1", constructions)
	}
	if provider.CallCount() != 1 {
		t.Fatalf("calls = %d, want 1 (never revisit a failed provider)", provider.CallCount())
	}
}

func TestTranscribe_AllFailAggregates(t *testing.T) {
	g := New(policy("elevenlabs", "deepgram"), allReady, map[string]Factory{
		"elevenlabs": func() (stt.Transcriber, error) {
			return &mock.Transcriber{Err: stt.NewError("elevenlabs", stt.CodeTimeout, "slow")}, nil
		},
		"deepgram": func() (stt.Transcriber, error) {
			return &mock.Transcriber{Err: stt.NewError("deepgram", stt.CodeProviderError, "500")}, nil
		},
	})

	_, err := g.Transcribe(context.Background(), []byte("audio"), "audio/webm")
	var agg *AggregateError
	if !errors.As(err, &agg) {
		t.Fatalf("error %v is not an *AggregateError", err)
	}
	if agg.Primary != "elevenlabs" {
		t.Fatalf("primary = %q, want elevenlabs", agg.Primary)
	}
	if len(agg.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(agg.Attempts))
	}
	if agg.Attempts[0].Provider != "elevenlabs" || agg.Attempts[1].Provider != "deepgram" {
		t.Fatalf("attempt order = %s, %s", agg.Attempts[0].Provider, agg.Attempts[1].Provider)
	}
}

func TestTranscribe_SkipsUnusableProviders(t *testing.T) {
	status := func(name string) config.ProviderStatus {
		switch name {
		case "elevenlabs":
			return config.StatusDisabled
		case "deepgram":
			return config.StatusUnconfigured
		}
		return config.StatusReady
	}

	called := false
	g := New(policy("elevenlabs", "deepgram"), status, map[string]Factory{
		"elevenlabs": func() (stt.Transcriber, error) { called = true; return &mock.Transcriber{}, nil },
		"deepgram":   func() (stt.Transcriber, error) { called = true; return &mock.Transcriber{}, nil },
	})

	_, err := g.Transcribe(context.Background(), []byte("audio"), "audio/webm")
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("error = %v, want ErrNoProviders", err)
	}
	if called {
		t.Fatal("skipped providers must never be constructed")
	}
}

func TestTranscribe_ConstructionFailureCountsAsAttempt(t *testing.T) {
	secondary := &mock.Transcriber{Result: &stt.Result{Text: "ok", Provider: "deepgram"}}
	g := New(policy("elevenlabs", "deepgram"), allReady, map[string]Factory{
		"elevenlabs": func() (stt.Transcriber, error) { return nil, errors.New("no credential") },
		"deepgram":   func() (stt.Transcriber, error) { return secondary, nil },
	})

	res, err := g.Transcribe(context.Background(), []byte("audio"), "audio/webm")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Text != "ok" {
		t.Fatalf("text = %q, want ok", res.Text)
	}
}
