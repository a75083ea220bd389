package atproto

import (
	"testing"

	"github.com/bluesky-social/indigo/atproto/syntax"
)

func TestResolveATURI(t *testing.T) {
	tests := []struct {
		name           string
		uri            string
		wantDID        string
		wantCollection string
		wantRKey       string
		wantErr        bool
	}{
		{
			name:           "valid plc DID URI",
			uri:            "at://did:plc:abc123/social.coffeetime.alpha.coffee/" + testCoffeeID,
			wantDID:        "did:plc:abc123",
			wantCollection: "social.coffeetime.alpha.coffee",
			wantRKey:       testCoffeeID,
		},
		{
			name:           "valid web DID URI",
			uri:            "at://did:web:example.com/social.coffeetime.alpha.coffee/xyz789",
			wantDID:        "did:web:example.com",
			wantCollection: "social.coffeetime.alpha.coffee",
			wantRKey:       "xyz789",
		},
		{
			name:           "foreign collection",
			uri:            "at://did:plc:user123/app.bsky.feed.post/abc123",
			wantDID:        "did:plc:user123",
			wantCollection: "app.bsky.feed.post",
			wantRKey:       "abc123",
		},
		{
			name:    "invalid scheme",
			uri:     "http://did:plc:abc123/social.coffeetime.alpha.coffee/abc",
			wantErr: true,
		},
		{
			name:    "empty URI",
			uri:     "",
			wantErr: true,
		},
		{
			name:    "garbage input",
			uri:     "not a valid uri at all",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveATURI(tt.uri)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ResolveATURI(%q) expected error, got nil", tt.uri)
				}
				return
			}

			if err != nil {
				t.Fatalf("ResolveATURI(%q) unexpected error = %v", tt.uri, err)
			}
			if got.DID != tt.wantDID {
				t.Errorf("DID = %q, want %q", got.DID, tt.wantDID)
			}
			if got.Collection != tt.wantCollection {
				t.Errorf("Collection = %q, want %q", got.Collection, tt.wantCollection)
			}
			if got.RKey != tt.wantRKey {
				t.Errorf("RKey = %q, want %q", got.RKey, tt.wantRKey)
			}
		})
	}
}

func TestResolveCoffeeRecord(t *testing.T) {
	owner := syntax.DID("did:plc:owner")
	record, err := CoffeeToRecord(testCoffee())
	if err != nil {
		t.Fatalf("CoffeeToRecord() error = %v", err)
	}

	tests := []struct {
		name    string
		uri     string
		wantErr bool
	}{
		{"own coffee", BuildATURI(owner.String(), NSIDCoffee, testCoffeeID), false},
		{"other repo", BuildATURI("did:plc:stranger", NSIDCoffee, testCoffeeID), true},
		{"other collection", BuildATURI(owner.String(), "app.bsky.feed.post", testCoffeeID), true},
		{"bad uri", "garbage", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			coffee, err := ResolveCoffeeRecord(Record{URI: tt.uri, Value: record}, owner)
			if tt.wantErr {
				if err == nil {
					t.Error("ResolveCoffeeRecord() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveCoffeeRecord() error = %v", err)
			}
			if coffee.ID != testCoffeeID {
				t.Errorf("ID = %q, want %q", coffee.ID, testCoffeeID)
			}
		})
	}
}

func TestBuildAndResolveRoundTrip(t *testing.T) {
	tests := []struct {
		did  string
		rkey string
	}{
		{"did:plc:abc123", testCoffeeID},
		{"did:plc:xyz789", "3kfk4slgu6s2h"},
		{"did:web:example.com", "roaster456"},
	}

	for _, tt := range tests {
		t.Run(tt.did+"/"+tt.rkey, func(t *testing.T) {
			uri := BuildATURI(tt.did, NSIDCoffee, tt.rkey)
			components, err := ResolveATURI(uri)
			if err != nil {
				t.Fatalf("ResolveATURI() error = %v", err)
			}
			if components.DID != tt.did || components.Collection != NSIDCoffee || components.RKey != tt.rkey {
				t.Errorf("round trip = %+v", components)
			}
		})
	}
}
