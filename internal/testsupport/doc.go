// Package testsupport holds helpers shared by package tests: a config
// builder rooted in per-test temp directories and fake upstream servers.
package testsupport
