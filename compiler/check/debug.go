//go:build !release

package check

const Enabled = true
