package mcpserver

import (
	"testing"

	"github.com/JamesPrial/tasksync/internal/remote"
	"github.com/JamesPrial/tasksync/internal/session"
)

// ---------------------------------------------------------------------------
// NewServer
// ---------------------------------------------------------------------------

func Test_NewServer_RequiresSession(t *testing.T) {
	t.Parallel()

	if _, err := NewServer(nil); err == nil {
		t.Error("NewServer(nil) succeeded, want error")
	}
}

func Test_NewServer_DoesNotStartSession(t *testing.T) {
	t.Parallel()

	sess, err := session.New(session.StaticIdentity("alice"), session.Options{Store: remote.NewMemoryStore()})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })

	srv, err := NewServer(sess)
	if err != nil {
		t.Fatalf("NewServer() unexpected error: %v", err)
	}
	if srv == nil {
		t.Fatal("NewServer() returned nil server without error")
	}
	if sess.Engine().Status().Synced {
		t.Error("NewServer subscribed before the session was run")
	}
}

func Test_NewServer_MultipleCallsCreateIndependentInstances(t *testing.T) {
	t.Parallel()

	sess, err := session.New(session.StaticIdentity("alice"), session.Options{Store: remote.NewMemoryStore()})
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	t.Cleanup(func() { _ = sess.Close() })

	srv1, err1 := NewServer(sess)
	srv2, err2 := NewServer(sess)
	if err1 != nil || err2 != nil {
		t.Fatalf("NewServer() errors: %v, %v", err1, err2)
	}
	if srv1 == srv2 {
		t.Error("NewServer() returned the same pointer for two calls, expected independent instances")
	}
}
