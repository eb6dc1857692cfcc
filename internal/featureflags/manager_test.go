package featureflags

import "testing"

const viewer = "6f0d2b1e-8c4a-4b9e-a1d2-3c4b5a697887"

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	if !m.Enabled("a", viewer) || !m.Enabled("c", viewer) || !m.Enabled("e", viewer) {
		t.Fatal("expected enabled boolean values to evaluate true")
	}
	if m.Enabled("b", viewer) || m.Enabled("d", viewer) || m.Enabled("f", viewer) {
		t.Fatal("expected disabled boolean values to evaluate false")
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%")

	if !m.Enabled("always", viewer) {
		t.Fatal("100% rollout should always be enabled")
	}
	if m.Enabled("never", viewer) {
		t.Fatal("0% rollout should always be disabled")
	}

	first := m.Enabled("canary", viewer)
	for i := 0; i < 5; i++ {
		if got := m.Enabled("canary", viewer); got != first {
			t.Fatal("rollout evaluation must be deterministic per user")
		}
	}

	if m.Enabled("canary", "") {
		t.Fatal("percentage rollout requires a viewer")
	}
}

func TestEnabledOr_FallbackForUnknownFlags(t *testing.T) {
	m := NewManager("comment_like_batching=off")

	if m.EnabledOr(CommentLikeBatching, "", true) {
		t.Fatal("configured flag must win over the fallback")
	}
	if !m.EnabledOr(RealtimeNotifications, "", true) {
		t.Fatal("unconfigured flag should use the fallback")
	}

	var nilManager *Manager
	if !nilManager.EnabledOr(CommentLikeBatching, "", true) {
		t.Fatal("nil manager should use the fallback")
	}
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off ")

	raw := m.Raw()
	if len(raw) != 3 {
		t.Fatalf("expected 3 parsed flags, got %d", len(raw))
	}
	if raw["x"] != "on" || raw["y"] != "20%" || raw["z"] != "off" {
		t.Fatalf("unexpected raw flags: %#v", raw)
	}

	snap := m.Snapshot(viewer)
	if len(snap) != 3 {
		t.Fatalf("expected snapshot size 3, got %d", len(snap))
	}
}

func TestNewManager_SkipsUnknownValuesAndClamps(t *testing.T) {
	m := NewManager("maybe=sometimes,pct=abc%,big=250%,=on")

	raw := m.Raw()
	if len(raw) != 1 || raw["big"] != "250%" {
		t.Fatalf("unexpected raw flags: %#v", raw)
	}
	if !m.Enabled("big", viewer) {
		t.Fatal("rollout above 100% should be fully enabled")
	}
	if m.EnabledOr("maybe", viewer, true) != true {
		t.Fatal("unparseable flag should fall back")
	}
}
