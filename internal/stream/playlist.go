package stream

import (
	"fmt"
	"math"
	"strings"

	"camera-relay/internal/transcoder"
)

// PlaylistContentType is the media type of every manifest the relay serves.
const PlaylistContentType = "application/vnd.apple.mpegurl"

// EmptyPlaylist is served for absent, stopped and failed sessions: a valid
// manifest that lists nothing and is already finished.
const EmptyPlaylist = "#EXTM3U\n#EXT-X-VERSION:3\n#EXT-X-ENDLIST\n"

// Segment is one entry of a media playlist.
type Segment struct {
	Sequence int64
	Duration float64
	Path     string
}

// RenderPlaylist returns the manifest for s. Anything other than an active
// session yields EmptyPlaylist.
//
// The active window is fixed: segment0.ts through segment2.ts at media
// sequence 0. Segment production happens in the external transcoder and
// the relay does not track its progress.
func RenderPlaylist(s *Session) string {
	if s == nil || !s.Active() {
		return EmptyPlaylist
	}
	return BuildLivePlaylist(liveWindow(), true)
}

// BuildLivePlaylist converts segments (ordered by sequence ascending) into an
// HLS media playlist. If ended is true, #EXT-X-ENDLIST is appended. An ended
// playlist with no segments is EmptyPlaylist.
func BuildLivePlaylist(segments []Segment, ended bool) string {
	if len(segments) == 0 && ended {
		return EmptyPlaylist
	}

	var b strings.Builder

	b.WriteString("#EXTM3U\n")
	b.WriteString("#EXT-X-VERSION:3\n")

	if len(segments) == 0 {
		b.WriteString("#EXT-X-TARGETDURATION:1\n")
		b.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
		return b.String()
	}

	fmt.Fprintf(&b, "#EXT-X-TARGETDURATION:%d\n", targetDuration(segments))
	fmt.Fprintf(&b, "#EXT-X-MEDIA-SEQUENCE:%d\n", segments[0].Sequence)

	for _, seg := range segments {
		fmt.Fprintf(&b, "#EXTINF:%.1f,\n", seg.Duration)
		b.WriteString(seg.Path)
		b.WriteString("\n")
	}

	if ended {
		b.WriteString("#EXT-X-ENDLIST\n")
	}

	return b.String()
}

func liveWindow() []Segment {
	segments := make([]Segment, transcoder.ListSize)
	for i := range segments {
		segments[i] = Segment{
			Sequence: int64(i),
			Duration: transcoder.SegmentSeconds,
			Path:     transcoder.SegmentName(i),
		}
	}
	return segments
}

// targetDuration is the ceiling of the longest segment, at least 1.
func targetDuration(segments []Segment) int {
	longest := 0.0
	for _, seg := range segments {
		longest = math.Max(longest, seg.Duration)
	}
	if longest <= 0 {
		return 1
	}
	return int(math.Ceil(longest))
}
