package rpcbus

import (
	"reflect"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/crypto/blake2b"
)

// Fingerprint identifies one RPC Key — the (TRequest, TResponse) pair — in
// the Response Subscription Registry's map, realizing spec §2's "a
// fingerprinted singleton subscription map under a lock" literally: the
// registry's sync.Map is keyed by Fingerprint rather than by the pair of
// reflect.Types directly, so two request types sharing a response type
// still fingerprint to distinct keys (spec §9's chosen keying semantics).
type Fingerprint [blake2b.Size256]byte

var (
	fingerprintCacheOnce sync.Once
	fingerprintCache     *lru.Cache[string, Fingerprint]
)

func fingerprintCacheInstance() *lru.Cache[string, Fingerprint] {
	fingerprintCacheOnce.Do(func() {
		fingerprintCache, _ = lru.New[string, Fingerprint](1024)
	})
	return fingerprintCache
}

// typeOf returns the reflect.Type for T without ever boxing a live zero
// value into an interface, so it works even when T's zero value would
// otherwise produce a nil-interface ambiguity.
func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// fingerprintFor computes (and memoizes) the Fingerprint for the RPC Key
// (TRequest, TResponse).
func fingerprintFor[TRequest, TResponse any]() Fingerprint {
	reqType := typeOf[TRequest]()
	respType := typeOf[TResponse]()
	key := reqType.String() + "|" + respType.String()

	cache := fingerprintCacheInstance()
	if fp, ok := cache.Get(key); ok {
		return fp
	}

	fp := blake2b.Sum256([]byte(key))
	cache.Add(key, fp)
	return fp
}
