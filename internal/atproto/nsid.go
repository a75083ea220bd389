package atproto

import (
	"fmt"
	"regexp"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

// Lexicon identifiers for journal records, domain reversed per atproto
// convention: coffeetime.social -> social.coffeetime.
const (
	NSIDBase = "social.coffeetime.alpha"

	// NSIDCoffee holds one record per coffee with its sessions embedded.
	NSIDCoffee = NSIDBase + ".coffee"

	// MaxRKeyLength is the maximum allowed length for a record key
	MaxRKeyLength = 512
)

// XRPC methods used for sync.
const (
	methodPutRecord    = "com.atproto.repo.putRecord"
	methodDeleteRecord = "com.atproto.repo.deleteRecord"
	methodListRecords  = "com.atproto.repo.listRecords"
)

// rkeyRegex validates record keys: alphanumeric start, then alphanumerics and
// ._:- up to 512 characters. Coffee UUIDs satisfy it as-is.
var rkeyRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._:-]{0,511}$`)

// ValidateRKey checks an rkey against the record key rules.
func ValidateRKey(rkey string) bool {
	if rkey == "" || len(rkey) > MaxRKeyLength {
		return false
	}
	if rkey == "." || rkey == ".." {
		return false
	}
	if _, err := syntax.ParseRecordKey(rkey); err != nil {
		return false
	}
	return rkeyRegex.MatchString(rkey)
}

// BuildATURI constructs an AT-URI from a DID, collection NSID, and record key
func BuildATURI(did, collection, rkey string) string {
	return fmt.Sprintf("at://%s/%s/%s", did, collection, rkey)
}

// RKeyFromURI returns the record key of an AT-URI, or "" if it does not parse.
func RKeyFromURI(uri string) string {
	parsed, err := syntax.ParseATURI(uri)
	if err != nil {
		return ""
	}
	return parsed.RecordKey().String()
}
