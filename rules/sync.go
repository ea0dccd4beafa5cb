//go:build ruleguard

// Package gorules holds ruleguard checks for this module, loaded through
// gocritic's ruleguard checker.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo flags the manual Add/Done pattern. The checklist fan-out uses wg.Go.
//
//	wg.Add(1)
//	go func() {
//	    defer wg.Done()
//	    fetch()
//	}()
//
// becomes
//
//	wg.Go(func() {
//	    fetch()
//	})
func WaitGroupGo(m dsl.Matcher) {
	m.Match(
		`$wg.Add(1); go func() { defer $wg.Done(); $*body }()`,
	).
		Where(m["wg"].Type.Is("*sync.WaitGroup") || m["wg"].Type.Is("sync.WaitGroup")).
		Report("use $wg.Go(func() { $body }) instead of manual Add/Done pattern (Go 1.25+)").
		Suggest("$wg.Go(func() { $body })")
}

// JoinHostPort flags host:port formatting that breaks IPv6 addresses.
func JoinHostPort(m dsl.Matcher) {
	m.Match(
		`fmt.Sprintf("%s:%d", $host, $port)`,
		`fmt.Sprintf("%v:%d", $host, $port)`,
		`fmt.Sprintf("%s:%s", $host, $port)`,
	).
		Where(m["host"].Text.Matches(`(?i)host`)).
		Report("use net.JoinHostPort for host:port (handles IPv6 correctly)")
}
