// Package index maps code-unit ids such as "a.b.Widget" to the bundles that
// own them. Exact rules win over package rules, and among package rules the
// longest matching package wins.
package index
