package rpcbus

import (
	"encoding/json"
	"reflect"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Serializer is the external payload (de)serializer (spec §6, out of
// scope as a collaborator). JSONSerializer is the default; a caller with a
// protobuf/msgpack pack in the examples corpus can supply their own.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONSerializer is the default Serializer.
type JSONSerializer struct{}

func (JSONSerializer) Marshal(v any) ([]byte, error) { return json.Marshal(v) }
func (JSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// TypeNameSerializer maps a response type to the identifier whose length
// the responder setup validates (Respond fails with ArgumentOutOfRange for
// names over 255 bytes; the serializer itself does not truncate or reject
// long names). Results are memoized in a
// bounded LRU the way hub.NonceCache memoizes per-device caches, since a
// reflect.Type's name never changes and recomputing it on a hot Respond
// path is wasted work.
type TypeNameSerializer struct {
	cache *lru.Cache[reflect.Type, string]
}

// NewTypeNameSerializer builds a serializer with an LRU of the given size.
func NewTypeNameSerializer(size int) *TypeNameSerializer {
	if size <= 0 {
		size = 256
	}
	cache, _ := lru.New[reflect.Type, string](size)
	return &TypeNameSerializer{cache: cache}
}

// NameFor returns the identifier for t, a fully qualified type name
// (package path + name) so that two distinct packages' same-named types
// never collide on the wire.
func (s *TypeNameSerializer) NameFor(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if name, ok := s.cache.Get(t); ok {
		return name
	}
	name := t.String()
	if t.PkgPath() != "" {
		name = t.PkgPath() + "." + t.Name()
	}
	s.cache.Add(t, name)
	return name
}
