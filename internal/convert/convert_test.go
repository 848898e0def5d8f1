package convert

import (
	"reflect"
	"testing"
)

func TestCamelKey(t *testing.T) {
	cases := map[string]string{
		"user_id":           "userId",
		"subscription_tier": "subscriptionTier",
		"is_personal":       "isPersonal",
		"id":                "id",
		"logo_url":          "logoUrl",
		"_leading":          "leading",
	}
	for in, want := range cases {
		if got := CamelKey(in); got != want {
			t.Fatalf("CamelKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSnakeKey(t *testing.T) {
	cases := map[string]string{
		"userId":           "user_id",
		"subscriptionTier": "subscription_tier",
		"isPersonal":       "is_personal",
		"id":               "id",
		"logoUrl":          "logo_url",
	}
	for in, want := range cases {
		if got := SnakeKey(in); got != want {
			t.Fatalf("SnakeKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSnakeToCamelRecurses(t *testing.T) {
	in := map[string]any{
		"team_id": "t1",
		"members": []any{
			map[string]any{"user_id": "u1", "created_at": "now"},
		},
	}
	want := map[string]any{
		"teamId": "t1",
		"members": []any{
			map[string]any{"userId": "u1", "createdAt": "now"},
		},
	}
	if got := SnakeToCamel(in); !reflect.DeepEqual(got, want) {
		t.Fatalf("SnakeToCamel mismatch:\n got %#v\nwant %#v", got, want)
	}
}

func TestMetadataKeysPassThrough(t *testing.T) {
	meta := map[string]any{"APIKey": "k", "plan_code": "p", "billingEmail": "a@b.c"}
	in := map[string]any{"team_id": "t1", "metadata": meta}

	camel := SnakeToCamel(in).(map[string]any)
	if !reflect.DeepEqual(camel["metadata"], meta) {
		t.Fatalf("metadata rewritten on read: %#v", camel["metadata"])
	}

	snake := CamelToSnake(camel).(map[string]any)
	if !reflect.DeepEqual(snake["metadata"], meta) {
		t.Fatalf("metadata rewritten on write: %#v", snake["metadata"])
	}
	if snake["team_id"] != "t1" {
		t.Fatalf("row keys not transformed: %#v", snake)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	type row struct {
		TeamID  string `json:"teamId"`
		LogoURL string `json:"logoUrl,omitempty"`
	}
	data, err := MarshalSnake(row{TeamID: "t1", LogoURL: "http://x"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"logo_url":"http://x","team_id":"t1"}` {
		t.Fatalf("unexpected wire form: %s", data)
	}

	var out row
	if err := UnmarshalCamel([]byte(`{"team_id":"t2","logo_url":"y"}`), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.TeamID != "t2" || out.LogoURL != "y" {
		t.Fatalf("unexpected struct: %#v", out)
	}
}
