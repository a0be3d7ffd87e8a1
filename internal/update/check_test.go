package update

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"tools.zach/dev/swatchbook/internal/fetch"
)

// ///////////////////////////////////////////////
// parseSemver Tests
// ///////////////////////////////////////////////

func TestParseSemver(t *testing.T) {
	tests := []struct {
		input string
		want  []int
	}{
		{"1.2.3", []int{1, 2, 3}},
		{"v1.2.3", []int{1, 2, 3}},
		{"0.0.0-dev", []int{0, 0, 0}},
		{"1.0.0-beta+build123", []int{1, 0, 0}},
		{"1.2.3+metadata", []int{1, 2, 3}},
		{"0.1.0-dev.3+g1234567", []int{0, 1, 0}},

		{"", nil},
		{"1.2", nil},
		{"1.2.x", nil},
		{"1..3", nil},
		{"1.2.3.4", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseSemver(tt.input); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseSemver(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// semverLess Tests
// ///////////////////////////////////////////////

func TestSemverLess(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"equal", "1.2.3", "1.2.3", false},
		{"major", "0.9.9", "1.0.0", true},
		{"minor reversed", "1.2.0", "1.1.0", false},
		{"patch", "1.0.0", "1.0.1", true},
		{"mixed prefix", "0.1.0", "v0.2.0", true},
		{"pre-release before release", "0.1.0-dev", "0.1.0", true},
		{"release after pre-release", "0.1.0", "0.1.0-dev", false},
		{"build metadata only", "0.1.0+abc", "0.1.0", false},
		{"pre-releases unordered", "1.0.0-alpha", "1.0.0-beta", false},
		{"invalid", "dev", "1.0.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := semverLess(tt.a, tt.b); got != tt.want {
				t.Errorf("semverLess(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

// ///////////////////////////////////////////////
// Check Tests
// ///////////////////////////////////////////////

func serve(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func client() *fetch.Client {
	return fetch.NewClient(fetch.Options{RetryMax: 0})
}

func TestCheckNewer(t *testing.T) {
	url := serve(t, http.StatusOK, `{".": "1.2.0"}`)
	res, err := Check(context.Background(), client(), url, "1.0.0")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !res.Newer || res.Latest != "1.2.0" || res.Current != "1.0.0" {
		t.Errorf("result = %+v", res)
	}
}

func TestCheckCurrent(t *testing.T) {
	url := serve(t, http.StatusOK, `{".": "1.0.0"}`)
	res, err := Check(context.Background(), client(), url, "1.0.0")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if res.Newer {
		t.Errorf("result = %+v, want not newer", res)
	}
}

func TestCheckErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, ""},
		{"invalid json", http.StatusOK, "not json"},
		{"no root version", http.StatusOK, `{"cmd/other": "1.0.0"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := serve(t, tt.status, tt.body)
			if _, err := Check(context.Background(), client(), url, "1.0.0"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestCheckNoManifest(t *testing.T) {
	_, err := Check(context.Background(), client(), "", "1.0.0")
	if !errors.Is(err, ErrNoManifest) {
		t.Errorf("err = %v, want ErrNoManifest", err)
	}
}
