package plugin

import "testing"

func TestParamsGetAndExists(t *testing.T) {
	p := newJSONView([]byte(`{"configuration":{"lightning-dir":"/tmp/x","network":"regtest"}}`))

	dir := p.Get("configuration.lightning-dir")
	if !dir.Exists() {
		t.Fatal("expected configuration.lightning-dir to exist")
	}
	assertEqual(t, dir.String(), "/tmp/x", "lightning-dir")

	missing := p.Get("configuration.nope")
	if missing.Exists() {
		t.Fatal("expected configuration.nope to be absent")
	}
}

func TestParamsMemberAndTypes(t *testing.T) {
	p := newJSONView([]byte(`{"count":3,"ok":true,"name":"x"}`))

	assertEqual(t, p.Member("count").Int(), int64(3), "count")
	assertEqual(t, p.Member("ok").Bool(), true, "ok")
	assertEqual(t, p.Member("name").String(), "x", "name")
}

func TestParamsForEach(t *testing.T) {
	p := newJSONView([]byte(`{"a":1,"b":2}`))

	seen := map[string]int64{}
	p.ForEach(func(key, value Params) bool {
		seen[key.String()] = value.Int()
		return true
	})

	assertEqual(t, len(seen), 2, "member count")
	assertEqual(t, seen["a"], int64(1), "a")
	assertEqual(t, seen["b"], int64(2), "b")
}

func TestDelvePath(t *testing.T) {
	got, err := delvePath([]byte(`{"allow-deprecated-apis":"true"}`), "allow-deprecated-apis")
	if err != nil {
		t.Fatalf("delvePath: %v", err)
	}
	assertEqual(t, got, "true", "allow-deprecated-apis")
}

func TestDelvePathMissing(t *testing.T) {
	_, err := delvePath([]byte(`{"other":"x"}`), "allow-deprecated-apis")
	if err == nil {
		t.Fatal("expected an error for a missing path")
	}
}
