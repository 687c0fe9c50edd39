package jwtx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"golang.org/x/sync/singleflight"
)

// DefaultRemoteTTL is how long a fetched key set is considered fresh.
// Providers rotate on the order of days, so tens of minutes is plenty.
const DefaultRemoteTTL = 30 * time.Minute

const fetchTimeout = 10 * time.Second

// RemoteKeySet caches the JWKS published by an identity provider. A lookup
// that misses (unknown kid) or finds the cache stale triggers exactly one
// refetch; concurrent callers await the same in-flight fetch. The kid->key
// map is replaced wholesale under lock, so readers see either the old set or
// the new one, never a partial update.
type RemoteKeySet struct {
	url    string
	ttl    time.Duration
	client *http.Client

	group singleflight.Group

	mu        sync.RWMutex
	keys      map[string]any // kid -> crypto public key
	fetchedAt time.Time
}

// NewRemoteKeySet creates a RemoteKeySet for the given JWKS endpoint.
// A zero ttl means DefaultRemoteTTL; a nil client means http.DefaultClient.
func NewRemoteKeySet(url string, ttl time.Duration, client *http.Client) *RemoteKeySet {
	if ttl <= 0 {
		ttl = DefaultRemoteTTL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &RemoteKeySet{
		url:    url,
		ttl:    ttl,
		client: client,
	}
}

// Key resolves the public key for kid, refetching the remote set when the
// kid is unknown or the cache has gone stale. The lookup is retried once
// after a refresh; a kid the provider doesn't publish is ErrUnknownKID.
func (r *RemoteKeySet) Key(ctx context.Context, kid string) (any, error) {
	key, found, fresh := r.lookup(kid)
	if found && fresh {
		return key, nil
	}

	if err := r.refresh(ctx); err != nil {
		if found {
			// Stale but known key: serve it rather than failing the
			// request because the provider endpoint hiccuped.
			return key, nil
		}
		return nil, fmt.Errorf("jwtx: key set refresh: %w", err)
	}

	if key, found, _ = r.lookup(kid); found {
		return key, nil
	}
	return nil, ErrUnknownKID
}

func (r *RemoteKeySet) lookup(kid string) (key any, found, fresh bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, found = r.keys[kid]
	fresh = time.Since(r.fetchedAt) < r.ttl
	return key, found, fresh
}

// refresh fetches the JWKS, collapsing concurrent callers into one request.
func (r *RemoteKeySet) refresh(ctx context.Context) error {
	_, err, _ := r.group.Do("refresh", func() (any, error) {
		// Detach from the caller so one client disconnect doesn't abort a
		// fetch other requests are waiting on.
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()

		keys, err := r.fetch(fctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.keys = keys
		r.fetchedAt = time.Now()
		r.mu.Unlock()

		return nil, nil
	})
	return err
}

func (r *RemoteKeySet) fetch(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, r.url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var doc jose.JSONWebKeySet
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode JWKS: %w", err)
	}

	keys := make(map[string]any, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.KeyID == "" || !k.Valid() {
			continue
		}
		keys[k.KeyID] = k.Key
	}
	return keys, nil
}
