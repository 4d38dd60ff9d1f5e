package main

import "testing"

func TestUploadsURL(t *testing.T) {
	cases := []struct {
		publicURL, addr, want string
	}{
		{"", "127.0.0.1:8480", "http://127.0.0.1:8480/api/uploads"},
		{"", ":8480", "http://localhost:8480/api/uploads"},
		{"", "0.0.0.0:9000", "http://localhost:9000/api/uploads"},
		{"https://forms.example.com/api/", ":8480", "https://forms.example.com/api/uploads"},
	}
	for _, tc := range cases {
		if got := uploadsURL(tc.publicURL, tc.addr); got != tc.want {
			t.Errorf("uploadsURL(%q, %q) = %q, want %q", tc.publicURL, tc.addr, got, tc.want)
		}
	}
}
