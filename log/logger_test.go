package log

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestLevelFiltering(t *testing.T) {
	defer SetSink(os.Stdout)
	defer SetLevel(Notice)

	var buf bytes.Buffer
	SetSink(&buf)

	type spec struct {
		level      Level
		expEnabled []Level
		expDropped []Level
	}
	specs := []spec{
		{Debug, []Level{Debug, Info, Notice, Error}, nil},
		{Notice, []Level{Notice, Warning, Error}, []Level{Debug, Info}},
		{Error, []Level{Error}, []Level{Debug, Notice, Warning}},
	}

	for specIndex, s := range specs {
		SetLevel(s.level)
		for _, l := range s.expEnabled {
			if !IsEnabledFor(l, "test module") {
				t.Fatalf("[spec %d] expected level %d to be enabled", specIndex, l)
			}
		}
		for _, l := range s.expDropped {
			if IsEnabledFor(l, "test module") {
				t.Fatalf("[spec %d] expected level %d to be disabled", specIndex, l)
			}
		}
	}

	SetLevel(Info)
	logger := New("test module")
	logger.Debugf("hidden %d", 1)
	logger.Infof("shown %d", 2)
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown 2") {
		t.Fatalf("unexpected log output %q", out)
	}
}
