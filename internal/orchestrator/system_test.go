package orchestrator

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/inkloom/loom/internal/config"
	"github.com/inkloom/loom/internal/errors"
	"github.com/inkloom/loom/internal/generate"
)

// quietConfig returns the default configuration with logging disabled so
// tests do not write to stderr.
func quietConfig() *config.Config {
	cfg := config.Default()
	cfg.Logging.Enabled = false
	return cfg
}

func TestNewFromConfigDefaults(t *testing.T) {
	gen := &scriptGen{fn: func(call int, pc generate.PromptContext) ([]byte, error) {
		return goodPayload(pc.Position), nil
	}}

	sys, err := NewFromConfig(quietConfig(), gen)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	defer func() {
		if err := sys.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	}()

	id, sc := segment(4)
	a, err := sys.ProduceSegment(context.Background(), id, sc)
	if err != nil {
		t.Fatalf("ProduceSegment: %v", err)
	}
	if a.Position != 4 {
		t.Errorf("artifact position = %d, want 4", a.Position)
	}
}

func TestNewFromConfigRequiresGenerator(t *testing.T) {
	_, err := NewFromConfig(quietConfig(), nil)
	if !errors.Is(err, errors.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestNewFromConfigRejectsInvalidConfig(t *testing.T) {
	cfg := quietConfig()
	cfg.Scheduler.Slots = 0

	gen := &scriptGen{fn: func(call int, pc generate.PromptContext) ([]byte, error) {
		return goodPayload(pc.Position), nil
	}}
	_, err := NewFromConfig(cfg, gen)
	if err == nil {
		t.Fatal("NewFromConfig accepted scheduler.slots = 0")
	}
	if !strings.Contains(err.Error(), "scheduler.slots") {
		t.Errorf("err = %v, want the offending field named", err)
	}
}

func TestNewFromConfigAppliesRetryBudgets(t *testing.T) {
	cfg := quietConfig()
	cfg.Retry.MaxTransient = 0
	cfg.Retry.MaxValidation = 0

	gen := &scriptGen{fn: func(call int, pc generate.PromptContext) ([]byte, error) {
		return nil, generate.Transient("producer call", fmt.Errorf("down"))
	}}
	sys, err := NewFromConfig(cfg, gen)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	defer sys.Close()

	id, sc := segment(4)
	if _, err := sys.ProduceSegment(context.Background(), id, sc); !errors.Is(err, errors.ErrTerminal) {
		t.Fatalf("err = %v, want terminal after zero-budget transient failure", err)
	}
	if gen.calls() != 1 {
		t.Errorf("producer called %d times, want 1", gen.calls())
	}
}

func TestNewFromConfigAppliesValidationConfig(t *testing.T) {
	cfg := quietConfig()
	cfg.Validation.Canon = []string{"Monroe"}
	cfg.Retry.MaxValidation = 1

	gen := &scriptGen{fn: func(call int, pc generate.PromptContext) ([]byte, error) {
		if call == 0 {
			return fmt.Appendf(nil, `{"prose":"Jack met Monore at the docks.","position":%d,"stance":"cautious"}`, pc.Position), nil
		}
		return fmt.Appendf(nil, `{"prose":"Jack met Monroe at the docks.","position":%d,"stance":"cautious"}`, pc.Position), nil
	}}
	sys, err := NewFromConfig(cfg, gen)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}
	defer sys.Close()

	id, sc := segment(4)
	if _, err := sys.ProduceSegment(context.Background(), id, sc); err != nil {
		t.Fatalf("ProduceSegment: %v", err)
	}
	if gen.calls() != 2 {
		t.Fatalf("producer called %d times, want misspelling rejection then acceptance", gen.calls())
	}
	fb := gen.prompt(1).Feedback
	if len(fb) == 0 || !strings.Contains(fb[0], "canon-misspelling") {
		t.Errorf("second attempt feedback = %v, want the canon finding", fb)
	}
}

func TestNewFromConfigBoltDurability(t *testing.T) {
	cfg := quietConfig()
	cfg.Storage.Path = filepath.Join(t.TempDir(), "loom.db")

	gen := &scriptGen{fn: func(call int, pc generate.PromptContext) ([]byte, error) {
		return goodPayload(pc.Position), nil
	}}
	sys, err := NewFromConfig(cfg, gen)
	if err != nil {
		t.Fatalf("NewFromConfig: %v", err)
	}

	id, sc := segment(4)
	first, err := sys.ProduceSegment(context.Background(), id, sc)
	if err != nil {
		t.Fatalf("ProduceSegment: %v", err)
	}
	if err := sys.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	failing := &scriptGen{fn: func(call int, pc generate.PromptContext) ([]byte, error) {
		t.Error("producer called despite durable artifact")
		return nil, generate.Content("unexpected", nil)
	}}
	restarted, err := NewFromConfig(cfg, failing)
	if err != nil {
		t.Fatalf("NewFromConfig after restart: %v", err)
	}
	defer restarted.Close()

	second, err := restarted.ProduceSegment(context.Background(), id, sc)
	if err != nil {
		t.Fatalf("ProduceSegment after restart: %v", err)
	}
	if second.Prose != first.Prose {
		t.Errorf("restarted pipeline returned %q, want %q", second.Prose, first.Prose)
	}
}
