package cachemdw

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

type CacheItemType int

const (
	CacheItemTypeRoute CacheItemType = iota + 1
)

func (t CacheItemType) String() string {
	switch t {
	case CacheItemTypeRoute:
		return "route"
	default:
		return "unknown"
	}
}

func BuildCacheKey(cachePrefix string, cacheItemType CacheItemType, parts []string) string {
	fullParts := append(
		[]string{
			cachePrefix,
			cacheItemType.String(),
		},
		parts...,
	)

	return strings.Join(fullParts, ":")
}

// GetRouteKey calculates cache key for a request to the named route,
// requests differing in path, query string or nid are cached separately
func GetRouteKey(cachePrefix string, routeName string, r *http.Request, nid string) string {
	data := make([]byte, 0, len(r.URL.Path)+len(r.URL.RawQuery)+len(nid)+2)
	data = append(data, []byte(r.URL.Path)...)
	data = append(data, '?')
	data = append(data, []byte(r.URL.RawQuery)...)
	data = append(data, '|')
	data = append(data, []byte(nid)...)

	hashedReq := crypto.Keccak256Hash(data)

	parts := []string{
		routeName,
		hashedReq.Hex(),
	}

	return BuildCacheKey(cachePrefix, CacheItemTypeRoute, parts)
}
