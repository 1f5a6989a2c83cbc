// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package etcd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	testcontainer "github.com/testcontainers/testcontainers-go/modules/etcd"
	clientv3 "go.etcd.io/etcd/client/v3"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	gerrors "github.com/tochemey/kvcoord/errors"
	"github.com/tochemey/kvcoord/internal/storetest"
)

var etcdEndpoints []string

func TestMain(m *testing.M) {
	ctx := context.Background()
	container, err := testcontainer.Run(
		ctx,
		"gcr.io/etcd-development/etcd:v3.5.14",
		testcontainer.WithNodes("etcd-1", "etcd-2", "etcd-3"),
	)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	endpoints, err := container.ClientEndpoints(ctx)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		_ = testcontainers.TerminateContainer(container)
		os.Exit(1)
	}

	etcdEndpoints = endpoints

	code := m.Run()
	_ = testcontainers.TerminateContainer(container)
	os.Exit(code)
}

func newTestStore(t *testing.T, namespace string) *Store {
	t.Helper()
	db, err := NewStore(&Config{
		Endpoints: etcdEndpoints,
		Namespace: namespace,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestStore(t *testing.T) {
	storetest.Run(t, newTestStore(t, "/kvcoord-test/"))
}

func TestClosedStore(t *testing.T) {
	storetest.RunClosed(t, newTestStore(t, "/kvcoord-closed/"))
}

func TestNewStore(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		db, err := NewStore(nil)
		require.Error(t, err)
		require.Nil(t, db)
	})

	t.Run("invalid config", func(t *testing.T) {
		db, err := NewStore(&Config{})
		require.Error(t, err)
		require.Nil(t, db)
	})

	t.Run("defaults", func(t *testing.T) {
		config := &Config{Endpoints: etcdEndpoints}
		db, err := NewStore(config)
		require.NoError(t, err)
		require.NotNil(t, config.Context)
		require.Equal(t, defaultNamespace, config.Namespace)
		require.Equal(t, 5*time.Second, config.Timeout)
		require.NoError(t, db.Close())
		require.NoError(t, db.Close())
	})

	t.Run("invalid endpoints", func(t *testing.T) {
		config := &Config{
			Context:     t.Context(),
			Endpoints:   []string{"http://127.0.0.1:1"},
			DialTimeout: 500 * time.Millisecond,
			Timeout:     500 * time.Millisecond,
		}

		db, err := NewStore(config)
		require.Error(t, err)
		require.Nil(t, db)
	})

	t.Run("client error", func(t *testing.T) {
		boom := errors.New("boom")
		db, err := newStore(&Config{Endpoints: etcdEndpoints}, func(clientv3.Config) (*clientv3.Client, error) {
			return nil, boom
		}, nil)
		require.ErrorIs(t, err, boom)
		require.Nil(t, db)
	})

	t.Run("defaults for nil client functions", func(t *testing.T) {
		db, err := newStore(&Config{Endpoints: etcdEndpoints}, nil, nil)
		require.NoError(t, err)
		require.NoError(t, db.Close())
	})
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	first := newTestStore(t, "/kvcoord-a")
	second := newTestStore(t, "/kvcoord-b")

	txn, err := first.Begin(ctx)
	require.NoError(t, err)
	txn.Set([]byte("shared"), []byte("a"))
	require.NoError(t, txn.Commit(ctx))

	txn, err = second.Begin(ctx)
	require.NoError(t, err)
	defer txn.Cancel()
	value, err := txn.Get(ctx, []byte("shared"))
	require.NoError(t, err)
	assert.Nil(t, value)
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	assert.True(t, gerrors.IsTransient(classify(ctx, "read", status.Error(codes.Unavailable, "down"))))
	assert.True(t, gerrors.IsTransient(classify(ctx, "read", context.DeadlineExceeded)))
	assert.False(t, gerrors.IsTransient(classify(ctx, "read", status.Error(codes.InvalidArgument, "bad"))))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, classify(canceled, "read", status.Error(codes.Unavailable, "down")), context.Canceled)
}

func TestNormalizeNamespace(t *testing.T) {
	assert.Equal(t, "/kvcoord/", normalizeNamespace(" /kvcoord "))
	assert.Equal(t, "/kvcoord/", normalizeNamespace("/kvcoord/"))
}
