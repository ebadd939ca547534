package engine

import (
	"testing"
	"time"

	"github.com/marmos91/nfsclient/internal/nfs"
	nfsv4 "github.com/marmos91/nfsclient/internal/nfs/v4"
)

func TestSplitPath(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`.`, nil},
		{``, nil},
		{`foo`, []string{"foo"}},
		{`foo\bar`, []string{"foo", "bar"}},
		{`.\foo\.\bar`, []string{"foo", "bar"}},
	}
	for _, c := range cases {
		got := splitPath(c.in)
		if len(got) != len(c.want) {
			t.Errorf("splitPath(%q) = %v, want %v", c.in, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("splitPath(%q)[%d] = %q, want %q", c.in, i, got[i], c.want[i])
			}
		}
	}
}

func TestToBackslashPath(t *testing.T) {
	cases := map[string]string{
		"/":            "",
		"":             "",
		".":            "",
		"/export":      "export",
		"/export/sub":  `export\sub`,
		"export/sub/":  `export\sub`,
	}
	for in, want := range cases {
		if got := toBackslashPath(in); got != want {
			t.Errorf("toBackslashPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAttrsFromNFS_NanosecondsVsMicroseconds(t *testing.T) {
	wire := &nfs.FileAttributes{
		Type:  uint32(FileTypeRegular),
		Mode:  0644,
		Size:  1024,
		Mtime: nfs.TimeVal{Seconds: 1000, Nseconds: 500},
	}

	v3Attrs := attrsFromNFS(wire, false)
	if v3Attrs.Mtime.Nanosecond() != 500 {
		t.Errorf("v3 (nanoseconds): got Nanosecond() = %d, want 500", v3Attrs.Mtime.Nanosecond())
	}

	v2Attrs := attrsFromNFS(wire, true)
	if v2Attrs.Mtime.Nanosecond() != 500*1000 {
		t.Errorf("v2 (microseconds): got Nanosecond() = %d, want %d", v2Attrs.Mtime.Nanosecond(), 500*1000)
	}

	if v3Attrs.Mtime.Unix() != 1000 {
		t.Errorf("expected Unix() == 1000, got %d", v3Attrs.Mtime.Unix())
	}
}

func TestAttrsFromNFS_Nil(t *testing.T) {
	if attrsFromNFS(nil, false) != nil {
		t.Error("expected nil attrs to convert to nil")
	}
}

func TestAttrsFromV4_NumericOwner(t *testing.T) {
	wire := &nfsv4.FileAttributes{
		Type:  1,
		Mode:  0755,
		Owner: "1001",
		Group: "1002",
		Size:  42,
		MTime: nfsv4.NFSTime{Seconds: 2000, Nseconds: 7},
	}
	got := attrsFromV4(wire)
	if got.UID != 1001 || got.GID != 1002 {
		t.Errorf("expected numeric owner/group to parse, got UID=%d GID=%d", got.UID, got.GID)
	}
	if got.Mtime.Unix() != 2000 {
		t.Errorf("expected Mtime.Unix() == 2000, got %d", got.Mtime.Unix())
	}
}

func TestAttrsFromV4_NonNumericOwnerFallsBackToZero(t *testing.T) {
	wire := &nfsv4.FileAttributes{Owner: "alice@example.com", Group: "staff@example.com"}
	got := attrsFromV4(wire)
	if got.UID != 0 || got.GID != 0 {
		t.Errorf("expected non-numeric owner/group to fall back to 0, got UID=%d GID=%d", got.UID, got.GID)
	}
}

func TestTimeValue_ToTime(t *testing.T) {
	tv := timeValue{sec: 86400, nsec: 0}
	got := tv.toTime()
	want := time.Unix(86400, 0)
	if !got.Equal(want) {
		t.Errorf("toTime() = %v, want %v", got, want)
	}
}
