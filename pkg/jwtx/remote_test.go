package jwtx_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/innerpeace-app/gateway/pkg/jwtx"
)

// jwksServer serves the given key set and counts fetches.
func jwksServer(t *testing.T, jwks jwtx.JWKS, fetches *atomic.Int32, delay time.Duration) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		if delay > 0 {
			time.Sleep(delay)
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(jwks))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteKeySetResolvesPublishedKey(t *testing.T) {
	signer, err := jwtx.NewSignerFromPEM("remote-1", genES256PEM(t))
	require.NoError(t, err)

	var fetches atomic.Int32
	srv := jwksServer(t, jwtx.JWKS{Keys: []jwtx.JWK{signer.PublicJWK()}}, &fetches, 0)

	remote := jwtx.NewRemoteKeySet(srv.URL, time.Hour, srv.Client())

	key, err := remote.Key(context.Background(), "remote-1")
	require.NoError(t, err)
	require.NotNil(t, key)
	require.EqualValues(t, 1, fetches.Load())

	// Fresh cache hit: no second fetch.
	_, err = remote.Key(context.Background(), "remote-1")
	require.NoError(t, err)
	require.EqualValues(t, 1, fetches.Load())
}

func TestRemoteKeySetCollapsesConcurrentFetches(t *testing.T) {
	signer, err := jwtx.NewSignerFromPEM("remote-1", genES256PEM(t))
	require.NoError(t, err)

	var fetches atomic.Int32
	srv := jwksServer(t, jwtx.JWKS{Keys: []jwtx.JWK{signer.PublicJWK()}}, &fetches, 100*time.Millisecond)

	remote := jwtx.NewRemoteKeySet(srv.URL, time.Hour, srv.Client())

	const workers = 16

	start := make(chan struct{})
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = remote.Key(context.Background(), "remote-1")
		}()
	}

	close(start)
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	require.EqualValues(t, 1, fetches.Load())
}

func TestRemoteKeySetServesStaleKeyWhenRefreshFails(t *testing.T) {
	signer, err := jwtx.NewSignerFromPEM("remote-1", genES256PEM(t))
	require.NoError(t, err)

	jwks := jwtx.JWKS{Keys: []jwtx.JWK{signer.PublicJWK()}}

	var healthy atomic.Bool
	healthy.Store(true)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(jwks)
	}))
	t.Cleanup(srv.Close)

	// TTL so short every lookup is stale.
	remote := jwtx.NewRemoteKeySet(srv.URL, time.Nanosecond, srv.Client())

	_, err = remote.Key(context.Background(), "remote-1")
	require.NoError(t, err)

	healthy.Store(false)

	// Known kid survives a provider outage; an unknown one does not.
	_, err = remote.Key(context.Background(), "remote-1")
	require.NoError(t, err)

	_, err = remote.Key(context.Background(), "never-published")
	require.Error(t, err)
}

func TestRemoteKeySetUnknownKID(t *testing.T) {
	signer, err := jwtx.NewSignerFromPEM("remote-1", genES256PEM(t))
	require.NoError(t, err)

	var fetches atomic.Int32
	srv := jwksServer(t, jwtx.JWKS{Keys: []jwtx.JWK{signer.PublicJWK()}}, &fetches, 0)

	remote := jwtx.NewRemoteKeySet(srv.URL, time.Hour, srv.Client())

	_, err = remote.Key(context.Background(), "no-such-kid")
	require.ErrorIs(t, err, jwtx.ErrUnknownKID)
}
