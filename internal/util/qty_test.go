package util

import "testing"

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{name: "greek decimal comma", input: "3,00", want: "3", ok: true},
		{name: "greek thousands", input: "1.234,56", want: "1234.56", ok: true},
		{name: "invariant decimal dot", input: "12.5", want: "12.5", ok: true},
		{name: "plain integer", input: "7", want: "7", ok: true},
		{name: "padded", input: " 10 ", want: "10", ok: true},
		{name: "empty", input: "", ok: false},
		{name: "text", input: "ΤΜΧ", ok: false},
		{name: "negative rejected", input: "-3", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseQuantity(tc.input)
			if ok != tc.ok {
				t.Fatalf("ok=%v want %v", ok, tc.ok)
			}
			if ok && got.String() != tc.want {
				t.Fatalf("got %s want %s", got, tc.want)
			}
		})
	}
}

func TestParseQuantityOrOne(t *testing.T) {
	if got := ParseQuantityOrOne("not a number"); got.String() != "1" {
		t.Fatalf("got %s want 1", got)
	}
	if got := ParseQuantityOrOne("2,5"); got.String() != "2.5" {
		t.Fatalf("got %s want 2.5", got)
	}
}
