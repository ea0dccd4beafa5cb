//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// RawUserIDInLogs flags user identifiers written to logs unmodified.
// Log the pseudonym from privacy.UserRef instead.
func RawUserIDInLogs(m dsl.Matcher) {
	m.Import("github.com/tphakala/lifer/internal/logger")

	m.Match(
		`logger.String("user", $id)`,
		`logger.String("user_id", $id)`,
		`logger.String("userID", $id)`,
	).
		Where(!m["id"].Text.Matches(`UserRef\(`)).
		Report("log privacy.UserRef($id) instead of the raw user id")
}

// PrintInLibrary flags direct printing from internal packages. Commands
// write to cmd.OutOrStdout and everything else goes through the logger.
func PrintInLibrary(m dsl.Matcher) {
	m.Match(
		`fmt.Println($*_)`,
		`fmt.Printf($*_)`,
		`fmt.Print($*_)`,
		`log.Println($*_)`,
		`log.Printf($*_)`,
	).
		Where(m.File().PkgPath.Matches(`/internal/`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("use the module logger instead of printing from internal packages")
}
