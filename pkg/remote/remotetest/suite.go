// Package remotetest provides a reusable test suite for remote.Remote
// implementations. It tests the interface contract, not implementation
// details, making it shareable across backends (memory, filesystem, S3).
package remotetest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittotrack/pkg/remote"
)

// RemoteTestSuite exercises the remote capability contract against a
// fresh backend per test.
//
// Usage:
//
//	func TestMyRemote(t *testing.T) {
//	    suite := &remotetest.RemoteTestSuite{
//	        NewRemote: func(t *testing.T) remote.Remote {
//	            return myremote.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type RemoteTestSuite struct {
	// NewRemote is a factory that creates a fresh, empty Remote for each
	// test. This ensures test isolation.
	NewRemote func(t *testing.T) remote.Remote
}

// Run executes all tests in the suite.
func (suite *RemoteTestSuite) Run(t *testing.T) {
	t.Run("ExistsOnEmpty", suite.TestExistsOnEmpty)
	t.Run("PutGetRoundtrip", suite.TestPutGetRoundtrip)
	t.Run("GetMissingKey", suite.TestGetMissingKey)
	t.Run("PutOverwriteIdempotent", suite.TestPutOverwriteIdempotent)
	t.Run("ListAll", suite.TestListAll)
	t.Run("ListPrefix", suite.TestListPrefix)
	t.Run("ContextCancellation", suite.TestContextCancellation)
}

// testContext returns a standard test context.
func testContext() context.Context {
	return context.Background()
}

// mustPut uploads data under key and fails the test if it errors.
func mustPut(t *testing.T, r remote.Remote, key string, data []byte) {
	t.Helper()
	err := r.Put(testContext(), key, bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err, "Put should succeed")
}

// mustGet downloads the bytes under key and fails the test if it errors.
func mustGet(t *testing.T, r remote.Remote, key string) []byte {
	t.Helper()
	reader, err := r.Get(testContext(), key)
	require.NoError(t, err, "Get should succeed")
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err, "reading remote object should succeed")
	return data
}

// assertExists checks key presence.
func assertExists(t *testing.T, r remote.Remote, key string, expected bool) {
	t.Helper()
	exists, err := r.Exists(testContext(), key)
	require.NoError(t, err, "Exists should not error")
	assert.Equal(t, expected, exists, "key presence mismatch for %s", key)
}

// TestExistsOnEmpty verifies absence is reported as (false, nil).
func (suite *RemoteTestSuite) TestExistsOnEmpty(t *testing.T) {
	r := suite.NewRemote(t)
	assertExists(t, r, "ab/sent", false)
}

// TestPutGetRoundtrip verifies bytes survive an upload/download cycle.
func (suite *RemoteTestSuite) TestPutGetRoundtrip(t *testing.T) {
	r := suite.NewRemote(t)

	data := []byte("reproducible pipeline object payload")
	mustPut(t, r, "ab/cdef0123", data)

	assertExists(t, r, "ab/cdef0123", true)
	assert.Equal(t, data, mustGet(t, r, "ab/cdef0123"))
}

// TestGetMissingKey verifies Get on an absent key reports ErrKeyNotFound.
func (suite *RemoteTestSuite) TestGetMissingKey(t *testing.T) {
	r := suite.NewRemote(t)

	_, err := r.Get(testContext(), "no/such-key")
	require.Error(t, err)
	assert.True(t, errors.Is(err, remote.ErrKeyNotFound), "expected ErrKeyNotFound, got %v", err)
}

// TestPutOverwriteIdempotent verifies re-uploading an existing key is
// harmless: keys are content-addressed, so the bytes are identical.
func (suite *RemoteTestSuite) TestPutOverwriteIdempotent(t *testing.T) {
	r := suite.NewRemote(t)

	data := []byte("same bytes both times")
	mustPut(t, r, "cd/0011", data)
	mustPut(t, r, "cd/0011", data)

	assert.Equal(t, data, mustGet(t, r, "cd/0011"))

	keys, err := r.List(testContext(), "")
	require.NoError(t, err)
	assert.Len(t, keys, 1, "re-upload must not create a second object")
}

// TestListAll verifies listing with an empty prefix returns every key.
func (suite *RemoteTestSuite) TestListAll(t *testing.T) {
	r := suite.NewRemote(t)

	want := []string{"aa/one", "ab/two", "ff/three"}
	for _, key := range want {
		mustPut(t, r, key, []byte(key))
	}

	keys, err := r.List(testContext(), "")
	require.NoError(t, err)

	sort.Strings(keys)
	assert.Equal(t, want, keys)
}

// TestListPrefix verifies prefix filtering.
func (suite *RemoteTestSuite) TestListPrefix(t *testing.T) {
	r := suite.NewRemote(t)

	mustPut(t, r, "aa/one", []byte("1"))
	mustPut(t, r, "aa/two", []byte("2"))
	mustPut(t, r, "bb/three", []byte("3"))

	keys, err := r.List(testContext(), "aa/")
	require.NoError(t, err)

	sort.Strings(keys)
	assert.Equal(t, []string{"aa/one", "aa/two"}, keys)
}

// TestContextCancellation verifies operations observe a cancelled context.
func (suite *RemoteTestSuite) TestContextCancellation(t *testing.T) {
	r := suite.NewRemote(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Exists(ctx, "ab/key")
	assert.Error(t, err, "Exists should fail on cancelled context")

	err = r.Put(ctx, "ab/key", bytes.NewReader([]byte("x")), 1)
	assert.Error(t, err, "Put should fail on cancelled context")

	_, err = r.List(ctx, "")
	assert.Error(t, err, "List should fail on cancelled context")
}
