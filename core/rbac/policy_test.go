package rbac

import "testing"

func TestPolicyRoles(t *testing.T) {
	p, err := NewPolicy()
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	cases := []struct {
		role, path, method string
		want               bool
	}{
		{"viewer", "/api/cases/c1/timeline", "GET", true},
		{"viewer", "/api/cases/c1/timeline/export", "GET", true},
		{"viewer", "/api/cases/c1/events", "POST", false},
		{"viewer", "/api/cases/c1/patterns", "POST", false},
		{"ingest", "/api/cases/c1/events", "POST", true},
		{"ingest", "/api/cases/c1/patterns", "POST", false},
		{"ingest", "/api/cases/c1/correlate", "POST", false},
		{"ingest", "/api/cases/c1/timeline", "GET", false},
		{"analyst", "/api/cases/c1/timeline", "GET", true},
		{"analyst", "/api/cases/c1/patterns", "POST", true},
		{"analyst", "/api/cases/c1/correlate", "POST", true},
		{"analyst", "/api/cases/c1/events", "POST", true},
		{"intruder", "/api/cases/c1/timeline", "GET", false},
	}
	for _, tc := range cases {
		if got := p.Allowed(tc.role, tc.path, tc.method); got != tc.want {
			t.Errorf("Allowed(%s, %s %s) = %v, want %v", tc.role, tc.method, tc.path, got, tc.want)
		}
	}
}

func TestPolicyNilSafe(t *testing.T) {
	var p *Policy
	if p.Allowed("analyst", "/api/cases/c1/timeline", "GET") {
		t.Fatalf("nil policy allowed a request")
	}
}
