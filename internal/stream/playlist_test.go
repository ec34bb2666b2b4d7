package stream

import (
	"strings"
	"testing"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
)

const activePlaylist = "#EXTM3U\n" +
	"#EXT-X-VERSION:3\n" +
	"#EXT-X-TARGETDURATION:2\n" +
	"#EXT-X-MEDIA-SEQUENCE:0\n" +
	"#EXTINF:2.0,\nsegment0.ts\n" +
	"#EXTINF:2.0,\nsegment1.ts\n" +
	"#EXTINF:2.0,\nsegment2.ts\n" +
	"#EXT-X-ENDLIST\n"

func TestRenderPlaylist_empty_for_non_active(t *testing.T) {
	const want = "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-ENDLIST\n"

	if got := RenderPlaylist(nil); got != want {
		t.Errorf("nil session: got %q", got)
	}
	for _, status := range []Status{StatusInactive, StatusError, ""} {
		s := &Session{CameraID: "cam-1", Status: status, SourceURI: "rtsp://x", ViewerCount: 7}
		if got := RenderPlaylist(s); got != want {
			t.Errorf("status %q: got %q", status, got)
		}
	}
}

func TestRenderPlaylist_active(t *testing.T) {
	s := &Session{CameraID: "cam-1", Status: StatusActive}

	got := RenderPlaylist(s)
	if got != activePlaylist {
		t.Errorf("unexpected playlist:\n%s", got)
	}

	// Rendering is deterministic and does not depend on viewers or history.
	s.ViewerCount = 42
	if again := RenderPlaylist(s); again != got {
		t.Error("expected identical output for repeated renders")
	}
}

func TestRenderPlaylist_active_parses_as_hls(t *testing.T) {
	pl, err := playlist.Unmarshal([]byte(RenderPlaylist(&Session{Status: StatusActive})))
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	media, ok := pl.(*playlist.Media)
	if !ok {
		t.Fatalf("expected media playlist, got %T", pl)
	}
	if len(media.Segments) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(media.Segments))
	}
	if media.Segments[0].URI != "segment0.ts" {
		t.Errorf("expected first segment segment0.ts, got %s", media.Segments[0].URI)
	}
}

func TestBuildLivePlaylist_empty(t *testing.T) {
	if got := BuildLivePlaylist(nil, true); got != EmptyPlaylist {
		t.Errorf("ended empty playlist: got %q", got)
	}

	got := BuildLivePlaylist(nil, false)
	if !strings.Contains(got, "#EXT-X-MEDIA-SEQUENCE:0") || strings.Contains(got, "#EXT-X-ENDLIST") {
		t.Errorf("open empty playlist: got %q", got)
	}
}

func TestBuildLivePlaylist_target_duration_rounds_up(t *testing.T) {
	got := BuildLivePlaylist([]Segment{
		{Sequence: 40, Duration: 2.0, Path: "40.ts"},
		{Sequence: 41, Duration: 4.2, Path: "41.ts"},
	}, false)

	if !strings.Contains(got, "#EXT-X-TARGETDURATION:5\n") {
		t.Errorf("expected target duration 5, got:\n%s", got)
	}
	if !strings.Contains(got, "#EXT-X-MEDIA-SEQUENCE:40\n") {
		t.Errorf("expected media sequence 40, got:\n%s", got)
	}
	if !strings.Contains(got, "#EXTINF:4.2,\n41.ts\n") {
		t.Errorf("expected second segment entry, got:\n%s", got)
	}
	if strings.HasSuffix(got, "#EXT-X-ENDLIST\n") {
		t.Error("open playlist must not end with ENDLIST")
	}
}
