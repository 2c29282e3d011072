//go:build linux

package xattr

import (
	"reflect"
	"testing"
)

func TestSplitNamesHandlesTrailingNUL(t *testing.T) {
	buf := []byte("user.foo\x00system.posix_acl_access\x00")
	got := splitNames(buf)
	want := []string{"user.foo", "system.posix_acl_access"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitNames = %v, want %v", got, want)
	}
}

func TestSplitNamesEmptyBuffer(t *testing.T) {
	if got := splitNames(nil); got != nil {
		t.Fatalf("splitNames(nil) = %v, want nil", got)
	}
}

func TestNewSourceReportsSupported(t *testing.T) {
	if !NewSource().Supported() {
		t.Fatalf("linux adapter should report Supported() == true")
	}
}
