package agentregistry

import (
	"context"
	"errors"
	"testing"
)

func testAgent(name, category string, keywords ...string) Agent {
	return Agent{
		Name:        name,
		Description: "Test agent " + name,
		Category:    category,
		Keywords:    keywords,
		Handle: func(ctx context.Context, input, userID string) (interface{}, error) {
			return name, nil
		},
	}
}

func TestNew(t *testing.T) {
	r := New()
	if r.Count() != 0 {
		t.Errorf("expected empty registry, got %d agents", r.Count())
	}
}

func TestRegister(t *testing.T) {
	t.Run("registers valid agent", func(t *testing.T) {
		r := New()

		if err := r.Register(testAgent("trader", "trading", "swap")); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if r.Count() != 1 {
			t.Errorf("expected 1 agent, got %d", r.Count())
		}
		if _, ok := r.Get("trader"); !ok {
			t.Error("expected agent to be retrievable")
		}
	})

	t.Run("rejects duplicate name", func(t *testing.T) {
		r := New()

		_ = r.Register(testAgent("trader", "trading"))
		err := r.Register(testAgent("trader", "trading"))

		if !errors.Is(err, ErrDuplicateAgent) {
			t.Errorf("expected ErrDuplicateAgent, got %v", err)
		}
		if r.Count() != 1 {
			t.Errorf("expected 1 agent, got %d", r.Count())
		}
	})

	t.Run("rejects malformed agents", func(t *testing.T) {
		r := New()

		bad := []Agent{
			{Description: "no name", Handle: testAgent("x", "").Handle},
			{Name: "no-description", Handle: testAgent("x", "").Handle},
			{Name: "no-handler", Description: "missing handle"},
			{Name: "negative", Description: "bad priority", Priority: -1, Handle: testAgent("x", "").Handle},
		}
		for _, agent := range bad {
			if err := r.Register(agent); !errors.Is(err, ErrInvalidAgent) {
				t.Errorf("agent %q: expected ErrInvalidAgent, got %v", agent.Name, err)
			}
		}
	})
}

func TestSetDefaultAgent(t *testing.T) {
	r := New()
	_ = r.Register(testAgent("general", "general"))

	if err := r.SetDefaultAgent("ghost"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}
	if err := r.SetDefaultAgent("general"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if r.DefaultAgent() != "general" {
		t.Errorf("expected default agent general, got %q", r.DefaultAgent())
	}
}

func TestUnregister(t *testing.T) {
	r := New()
	_ = r.Register(testAgent("a", "general"))
	_ = r.SetDefaultAgent("a")

	if !r.Unregister("a") {
		t.Fatal("expected unregister to succeed")
	}
	if r.Unregister("a") {
		t.Error("expected second unregister to fail")
	}
	if r.DefaultAgent() != "" {
		t.Error("expected default agent to be cleared")
	}
}

func TestByIntent_CategoryBeatsKeywords(t *testing.T) {
	r := New()

	// Keyword specialist with a big priority boost
	keyworder := testAgent("keyworder", "general", "swap")
	keyworder.Priority = 10
	_ = r.Register(keyworder)

	// Category specialist with a modest boost
	trader := testAgent("trader", "trading")
	trader.Priority = 5
	_ = r.Register(trader)

	agent, ok := r.ByIntent(ParsedIntent{Category: "trading", Keywords: []string{"swap"}})
	if !ok {
		t.Fatal("expected a routed agent")
	}
	if agent.Name != "trader" {
		t.Errorf("expected category match to dominate, got %q", agent.Name)
	}
}

func TestByIntent_ExactBeatsSubstring(t *testing.T) {
	r := New()
	_ = r.Register(testAgent("partial", "", "swapping"))
	_ = r.Register(testAgent("exact", "", "swap"))

	// "swap" vs "swapping" is a substring hit; "swap" vs "swap" is exact
	// and collects both the exact and the substring bonus
	agent, ok := r.ByIntent(ParsedIntent{Keywords: []string{"swap"}})
	if !ok {
		t.Fatal("expected a routed agent")
	}
	if agent.Name != "exact" {
		t.Errorf("expected exact keyword agent, got %q", agent.Name)
	}
}

func TestByIntent_SubstringEitherDirection(t *testing.T) {
	r := New()
	_ = r.Register(testAgent("bystander", "", "lending"))
	_ = r.Register(testAgent("wide", "", "balance"))

	// Intent keyword contains the agent keyword
	agent, ok := r.ByIntent(ParsedIntent{Keywords: []string{"balances"}})
	if !ok || agent.Name != "wide" {
		t.Errorf("expected wide, got %q ok=%v", agent.Name, ok)
	}

	// Agent keyword contains the intent keyword
	agent, ok = r.ByIntent(ParsedIntent{Keywords: []string{"balan"}})
	if !ok || agent.Name != "wide" {
		t.Errorf("expected wide, got %q ok=%v", agent.Name, ok)
	}
}

func TestByIntent_CapabilityBonus(t *testing.T) {
	r := New()

	plain := testAgent("plain", "")
	_ = r.Register(plain)

	capable := testAgent("capable", "")
	capable.Capabilities = []string{"can stake tokens on mainnet"}
	_ = r.Register(capable)

	agent, ok := r.ByIntent(ParsedIntent{Keywords: []string{"stake"}})
	if !ok || agent.Name != "capable" {
		t.Errorf("expected capability hit to win, got %q ok=%v", agent.Name, ok)
	}
}

func TestByIntent_PriorityMultiplier(t *testing.T) {
	r := New()

	low := testAgent("low", "", "swap")
	_ = r.Register(low)

	high := testAgent("high", "", "swap")
	high.Priority = 3
	_ = r.Register(high)

	agent, ok := r.ByIntent(ParsedIntent{Keywords: []string{"swap"}})
	if !ok || agent.Name != "high" {
		t.Errorf("expected priority boost to win, got %q ok=%v", agent.Name, ok)
	}
}

func TestByIntent_ConfidenceScaling(t *testing.T) {
	r := New()
	_ = r.Register(testAgent("matcher", "", "swap"))
	_ = r.Register(testAgent("fallback", "general"))
	_ = r.SetDefaultAgent("fallback")

	// Zero confidence wipes out every score, so routing falls back
	zero := 0.0
	agent, ok := r.ByIntent(ParsedIntent{Keywords: []string{"swap"}, Confidence: &zero})
	if !ok || agent.Name != "fallback" {
		t.Errorf("expected fallback under zero confidence, got %q ok=%v", agent.Name, ok)
	}

	full := 1.0
	agent, ok = r.ByIntent(ParsedIntent{Keywords: []string{"swap"}, Confidence: &full})
	if !ok || agent.Name != "matcher" {
		t.Errorf("expected matcher under full confidence, got %q ok=%v", agent.Name, ok)
	}
}

func TestByIntent_TieKeepsRegistrationOrder(t *testing.T) {
	r := New()
	_ = r.Register(testAgent("first", "", "swap"))
	_ = r.Register(testAgent("second", "", "swap"))

	agent, ok := r.ByIntent(ParsedIntent{Keywords: []string{"swap"}})
	if !ok || agent.Name != "first" {
		t.Errorf("expected first registered to win the tie, got %q ok=%v", agent.Name, ok)
	}
}

func TestByIntent_SkipsDisabledAgents(t *testing.T) {
	r := New()
	_ = r.Register(testAgent("closed", "trading"))
	_ = r.Register(testAgent("open", "", "trade"))
	r.SetEnabled("closed", false)

	agent, ok := r.ByIntent(ParsedIntent{Category: "trading", Keywords: []string{"trade"}})
	if !ok || agent.Name != "open" {
		t.Errorf("expected disabled agent to be skipped, got %q ok=%v", agent.Name, ok)
	}
}

func TestByIntent_Fallbacks(t *testing.T) {
	t.Run("default agent when nothing scores", func(t *testing.T) {
		r := New()
		_ = r.Register(testAgent("a", "wallet", "balance"))
		_ = r.Register(testAgent("b", "general"))
		_ = r.SetDefaultAgent("b")

		agent, ok := r.ByIntent(ParsedIntent{Keywords: []string{"unrelated"}})
		if !ok || agent.Name != "b" {
			t.Errorf("expected default agent, got %q ok=%v", agent.Name, ok)
		}
	})

	t.Run("first enabled agent without a default", func(t *testing.T) {
		r := New()
		_ = r.Register(testAgent("a", "wallet"))
		_ = r.Register(testAgent("b", "general"))
		r.SetEnabled("a", false)

		agent, ok := r.ByIntent(ParsedIntent{Keywords: []string{"unrelated"}})
		if !ok || agent.Name != "b" {
			t.Errorf("expected first enabled agent, got %q ok=%v", agent.Name, ok)
		}
	})

	t.Run("miss when nothing is enabled", func(t *testing.T) {
		r := New()
		_ = r.Register(testAgent("a", "wallet"))
		r.SetEnabled("a", false)

		if _, ok := r.ByIntent(ParsedIntent{Keywords: []string{"anything"}}); ok {
			t.Error("expected a miss")
		}
	})
}

func TestByIntent_StampsLastUsed(t *testing.T) {
	r := New()
	_ = r.Register(testAgent("winner", "", "swap"))

	if _, ok := r.ByIntent(ParsedIntent{Keywords: []string{"swap"}}); !ok {
		t.Fatal("expected a routed agent")
	}
	if _, stamped := r.Stats().LastUsed["winner"]; !stamped {
		t.Error("expected lastUsed to be stamped for the routed agent")
	}
}

func TestSearchAndByCategory(t *testing.T) {
	r := New()
	trader := testAgent("trader", "trading", "swap", "bridge")
	trader.Capabilities = []string{"execute swaps"}
	_ = r.Register(trader)
	_ = r.Register(testAgent("banker", "wallet", "balance"))

	if got := r.Search("bridge"); len(got) != 1 || got[0].Name != "trader" {
		t.Errorf("keyword search failed: %v", got)
	}
	if got := r.Search("BANK"); len(got) != 1 || got[0].Name != "banker" {
		t.Errorf("name search failed: %v", got)
	}
	if got := r.ByCategory("trading"); len(got) != 1 || got[0].Name != "trader" {
		t.Errorf("category filter failed: %v", got)
	}

	r.SetEnabled("trader", false)
	if got := r.Search("bridge"); len(got) != 0 {
		t.Errorf("expected disabled agent to be hidden, got %v", got)
	}
}

func TestStats(t *testing.T) {
	r := New()
	_ = r.Register(testAgent("a", "trading"))
	_ = r.Register(testAgent("b", "trading"))
	_ = r.Register(testAgent("c", ""))
	r.SetEnabled("c", false)

	stats := r.Stats()
	if stats.Total != 3 {
		t.Errorf("expected total 3, got %d", stats.Total)
	}
	if stats.Enabled != 2 {
		t.Errorf("expected enabled 2, got %d", stats.Enabled)
	}
	if stats.Categories["trading"] != 2 || stats.Categories["general"] != 1 {
		t.Errorf("unexpected category counts: %v", stats.Categories)
	}
}
