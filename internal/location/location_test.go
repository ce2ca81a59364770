package location

import "testing"

func seedTable() *Table {
	return New([]Entry{
		{Username: "1001", IP: "10.0.0.1", Port: 5060, Realm: "example.com"},
		{Username: "1002", IP: "10.0.0.2", Port: 5060, Realm: "example.com"},
	})
}

func TestLookupFound(t *testing.T) {
	tbl := seedTable()
	e, ok := tbl.Lookup("1002")
	if !ok {
		t.Fatal("Lookup() ok = false, want true")
	}
	if e.IP != "10.0.0.2" {
		t.Errorf("IP = %q, want 10.0.0.2", e.IP)
	}
}

func TestLookupNotFound(t *testing.T) {
	tbl := seedTable()
	if _, ok := tbl.Lookup("9999"); ok {
		t.Fatal("Lookup() ok = true, want false for unprovisioned user")
	}
}

func TestRegisterUpdatesAddress(t *testing.T) {
	tbl := seedTable()
	e, err := tbl.Register("1001", "10.0.0.5", 5062)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !e.Registered || e.IP != "10.0.0.5" || e.Port != 5062 {
		t.Errorf("Register() = %+v, want registered 10.0.0.5:5062", e)
	}

	got, ok := tbl.Lookup("1001")
	if !ok || got.IP != "10.0.0.5" || got.Port != 5062 {
		t.Errorf("Lookup() after register = %+v", got)
	}
}

func TestRegisterUnknownUser(t *testing.T) {
	tbl := seedTable()
	if _, err := tbl.Register("9999", "10.0.0.5", 5062); err != ErrUserNotFound {
		t.Errorf("Register() error = %v, want ErrUserNotFound", err)
	}
}

func TestSecondRegisterSameAddressIsIdempotent(t *testing.T) {
	tbl := seedTable()
	tbl.Register("1001", "10.0.0.5", 5062)
	first, _ := tbl.Lookup("1001")
	tbl.Register("1001", "10.0.0.5", 5062)
	second, _ := tbl.Lookup("1001")
	if first != second {
		t.Errorf("entry changed across idempotent re-register: %+v != %+v", first, second)
	}
}
