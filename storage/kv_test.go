package storage

import "testing"

type payload struct {
	Name  string
	Count uint64
}

func TestKVStoreRoundTrip(t *testing.T) {
	store := NewKVStore(NewMemDB())
	key := []byte("test/payload")
	var out payload
	ok, err := store.KVGet(key, &out)
	if err != nil {
		t.Fatalf("get absent: %v", err)
	}
	if ok {
		t.Fatalf("expected absent key")
	}
	if err := store.KVPut(key, payload{Name: "round", Count: 7}); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, err = store.KVGet(key, &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if out.Name != "round" || out.Count != 7 {
		t.Fatalf("unexpected payload %+v", out)
	}
}

func TestMemDBIsolation(t *testing.T) {
	db := NewMemDB()
	value := []byte{1, 2, 3}
	if err := db.Put([]byte("k"), value); err != nil {
		t.Fatalf("put: %v", err)
	}
	value[0] = 9
	stored, err := db.Get([]byte("k"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored[0] != 1 {
		t.Fatalf("stored value aliased caller slice")
	}
	ok, err := db.Has([]byte("missing"))
	if err != nil || ok {
		t.Fatalf("expected missing key, ok=%v err=%v", ok, err)
	}
}
