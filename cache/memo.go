package cache

import "golang.org/x/sync/singleflight"

// Memo shares one pending result between concurrent callers that ask for the same key.
// Nothing is retained once the call completes; pair it with a TTL cache for that.
type Memo[V any] struct {
	group singleflight.Group
}

// Do runs fn once per key among concurrent callers. shared is true when the result
// was produced for another caller too.
func (m *Memo[V]) Do(key string, fn func() (V, error)) (v V, shared bool, err error) {
	res, err, shared := m.group.Do(key, func() (interface{}, error) {
		return fn()
	})
	if res != nil {
		v = res.(V)
	}
	return v, shared, err
}

// Forget drops the in-flight record for key so the next Do starts a fresh call.
func (m *Memo[V]) Forget(key string) {
	m.group.Forget(key)
}
