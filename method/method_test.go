package method

import "testing"

func TestKey(t *testing.T) {
	cases := []struct {
		m    Method
		want string
	}{
		{Method{Service: "users", Operation: "get"}, "users.get"},
		{Method{Service: "users", Operation: "get", Version: "v2"}, "users.get.v2"},
	}
	for _, c := range cases {
		if got := c.m.Key(); got != c.want {
			t.Errorf("Key() = %q, want %q", got, c.want)
		}
	}
}

func TestEqual(t *testing.T) {
	a := Method{Service: "users", Operation: "get"}
	b := Method{Service: "users", Operation: "get"}
	c := Method{Service: "users", Operation: "get", Version: "v1"}
	if !a.Equal(b) {
		t.Errorf("expected a.Equal(b)")
	}
	if a.Equal(c) {
		t.Errorf("expected a not equal to c")
	}
}
