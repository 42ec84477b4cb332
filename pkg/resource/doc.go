// Package resource discovers files under directory trees and describes them
// as named, tagged resources.
//
// A [Spec] names a directory, a glob matched against file base names, a base
// tag and a [Formatter] that derives display names and descriptions from
// file paths. [Scan] walks the tree and returns one [Descriptor] per
// matching regular file. Sub-directory names below [Spec.Dir]
// become additional tags, so "run_books/malware/triage.md" is tagged
// "runbook" and "malware".
//
// [Watcher] reports changes below scanned directories so callers can rescan.
package resource
