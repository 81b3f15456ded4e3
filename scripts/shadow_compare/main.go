// Command shadow_compare replays read-only requests against the legacy leave
// portal and this service during cutover, and reports where the two stacks
// disagree on leave, balance and policy reads. Exits non-zero when a critical
// endpoint differs.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
)

type endpoint struct {
	Method   string `json:"method"`
	Path     string `json:"path"`
	Critical bool   `json:"critical"`
}

type probe struct {
	status  int
	body    []byte
	elapsed time.Duration
	err     error
}

type verdict struct {
	endpoint endpoint
	current  probe
	legacy   probe
}

func (v verdict) matches() bool {
	if v.current.err != nil || v.legacy.err != nil {
		return false
	}
	return v.current.status == v.legacy.status &&
		equivalentJSON(v.current.body, v.legacy.body)
}

// Both stacks mint their own identifiers and timestamps, so these keys are
// dropped from every object before comparison.
var volatileKeys = []string{"id", "created_at", "updated_at", "applied_at", "decided_at", "generated_at"}

func main() {
	currentBase := flag.String("go-base", "http://localhost:8080", "base URL of this service")
	legacyBase := flag.String("legacy-base", "http://localhost:3000", "base URL of the legacy portal")
	token := flag.String("token", os.Getenv("SHADOW_COMPARE_TOKEN"), "bearer token sent to both stacks")
	targets := flag.String("targets", filepath.Join("scripts", "shadow_compare", "targets.json"), "endpoint list")
	timeout := flag.Duration("timeout", 5*time.Second, "per-request timeout")
	flag.Parse()

	endpoints, err := loadEndpoints(*targets)
	if err != nil {
		log.Fatalf("load targets: %v", err)
	}

	client := &http.Client{Timeout: *timeout}
	criticalDiffs := 0

	fmt.Println("shadow compare")
	fmt.Println("--------------")
	for _, ep := range endpoints {
		v := verdict{
			endpoint: ep,
			current:  fetch(client, *currentBase, *token, ep),
			legacy:   fetch(client, *legacyBase, *token, ep),
		}
		report(v)
		if !v.matches() && ep.Critical {
			criticalDiffs++
		}
	}

	fmt.Printf("critical diffs: %d\n", criticalDiffs)
	if criticalDiffs > 0 {
		os.Exit(1)
	}
}

func loadEndpoints(path string) ([]endpoint, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file struct {
		Targets []endpoint `json:"targets"`
	}
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if len(file.Targets) == 0 {
		return nil, fmt.Errorf("%s lists no targets", path)
	}
	return file.Targets, nil
}

func fetch(client *http.Client, base, token string, ep endpoint) probe {
	method := strings.ToUpper(ep.Method)
	if method == "" {
		method = http.MethodGet
	}
	url := strings.TrimRight(base, "/") + "/" + strings.TrimLeft(ep.Path, "/")

	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return probe{err: err}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return probe{err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return probe{status: resp.StatusCode, err: err}
	}
	return probe{status: resp.StatusCode, body: body, elapsed: time.Since(start)}
}

func equivalentJSON(a, b []byte) bool {
	var left, right interface{}
	if json.Unmarshal(a, &left) != nil || json.Unmarshal(b, &right) != nil {
		return strings.TrimSpace(string(a)) == strings.TrimSpace(string(b))
	}
	return reflect.DeepEqual(scrub(left), scrub(right))
}

// scrub removes volatile keys and canonicalizes whole-valued floats so the
// two stacks' number encodings compare equal.
func scrub(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		for _, key := range volatileKeys {
			delete(val, key)
		}
		for k, child := range val {
			val[k] = scrub(child)
		}
		return val
	case []interface{}:
		for i, child := range val {
			val[i] = scrub(child)
		}
		return val
	case float64:
		if val == float64(int64(val)) {
			return int64(val)
		}
		return val
	default:
		return v
	}
}

func report(v verdict) {
	label := "ok"
	switch {
	case v.current.err != nil || v.legacy.err != nil:
		label = "error"
	case !v.matches():
		label = "diff"
	}
	fmt.Printf("[%-5s] %s %s (new %d in %s, legacy %d in %s)\n",
		label, v.endpoint.Method, v.endpoint.Path,
		v.current.status, v.current.elapsed.Round(time.Millisecond),
		v.legacy.status, v.legacy.elapsed.Round(time.Millisecond))
	if v.current.err != nil {
		fmt.Printf("        new stack: %v\n", v.current.err)
	}
	if v.legacy.err != nil {
		fmt.Printf("        legacy stack: %v\n", v.legacy.err)
	}
}
