// Package shared holds helpers used by more than one aqpanel package.
//
// The testutil subpackage captures slog records so tests can assert on the
// warnings a component emits without parsing JSON output.
package shared
