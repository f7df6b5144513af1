package config

import (
	"testing"
	"time"

	"chime/internal/platform/testkit"
)

func TestLookupTrimsAndReportsPresence(t *testing.T) {
	t.Setenv("CHIME_TEST_URL", "  postgres://x  ")
	t.Setenv("CHIME_TEST_EMPTY", "   ")

	c := New()
	v, ok := c.Lookup("CHIME_TEST_URL")
	if !ok || v != "postgres://x" {
		t.Fatalf("got %q %v", v, ok)
	}
	if _, ok := c.Lookup("CHIME_TEST_EMPTY"); ok {
		t.Fatal("blank value reported as set")
	}
}

func TestPrefixComposes(t *testing.T) {
	t.Setenv("SCHEDULER_WORKER_THREADS", "4")
	c := New().Prefix("SCHEDULER_")
	if got := c.MayInt("WORKER_THREADS", 8); got != 4 {
		t.Fatalf("got %d", got)
	}
}

func TestMayIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("CHIME_TEST_INT", "twenty")
	c := New()
	if got := c.MayInt("CHIME_TEST_INT", 20); got != 20 {
		t.Fatalf("got %d", got)
	}
	if got := c.MayInt("CHIME_TEST_INT_MISSING", 5); got != 5 {
		t.Fatalf("got %d", got)
	}
}

func TestMaySeconds(t *testing.T) {
	t.Setenv("CHIME_TEST_SEC", "600")
	t.Setenv("CHIME_TEST_SEC_NEG", "-5")

	c := New()
	if got := c.MaySeconds("CHIME_TEST_SEC", time.Minute); got != 10*time.Minute {
		t.Fatalf("got %v", got)
	}
	if got := c.MaySeconds("CHIME_TEST_SEC_NEG", time.Minute); got != time.Minute {
		t.Fatalf("negative accepted: %v", got)
	}
}

func TestMayPort(t *testing.T) {
	t.Setenv("CHIME_TEST_PORT", "9090")
	t.Setenv("CHIME_TEST_PORT_COLON", ":9091")

	c := New()
	if got := c.MayPort("CHIME_TEST_PORT", ":8080"); got != ":9090" {
		t.Fatalf("got %q", got)
	}
	if got := c.MayPort("CHIME_TEST_PORT_COLON", ":8080"); got != ":9091" {
		t.Fatalf("got %q", got)
	}
	if got := c.MayPort("CHIME_TEST_PORT_MISSING", ":8080"); got != ":8080" {
		t.Fatalf("got %q", got)
	}

	t.Setenv("CHIME_TEST_PORT_BAD", "70000")
	testkit.MustPanic(t, func() { c.MayPort("CHIME_TEST_PORT_BAD", ":8080") })
}

func TestRequire(t *testing.T) {
	t.Setenv("CHIME_TEST_A", "x")
	c := New()
	testkit.MustNotPanic(t, func() { c.Require("CHIME_TEST_A") })
	testkit.MustPanic(t, func() { c.Require("CHIME_TEST_A", "CHIME_TEST_B_MISSING") })
}
