package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/dittotrack/pkg/remote"
	"github.com/marmos91/dittotrack/pkg/remote/remotetest"
)

func TestMemoryRemote(t *testing.T) {
	suite := &remotetest.RemoteTestSuite{
		NewRemote: func(t *testing.T) remote.Remote {
			return NewMemoryRemote()
		},
	}
	suite.Run(t)
}

func TestMemoryRemoteSimulatedOutage(t *testing.T) {
	r := NewMemoryRemote()
	r.SetFailing(true)

	_, err := r.Exists(context.Background(), "ab/key")
	if !errors.Is(err, remote.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}

	r.SetFailing(false)

	exists, err := r.Exists(context.Background(), "ab/key")
	if err != nil {
		t.Fatalf("Exists after recovery: %v", err)
	}
	if exists {
		t.Fatal("unexpected key after recovery")
	}
}
