// Package transcoder launches the external ffmpeg process that turns a
// camera's RTSP feed into HLS segments. No media is processed in-process.
package transcoder

import (
	"fmt"
	"path/filepath"
	"strconv"

	"camera-relay/internal/quality"
)

// HLS output layout shared with the playlist the relay serves.
const (
	SegmentSeconds = 2
	ListSize       = 3
	SegmentPattern = "segment%d.ts"
	PlaylistName   = "index.m3u8"
)

// SegmentName returns the file name of segment n.
func SegmentName(n int) string {
	return fmt.Sprintf(SegmentPattern, n)
}

// BuildArgs returns the ffmpeg argument list that pulls sourceURI over TCP,
// encodes it with profile p and writes a rolling HLS window into outDir.
func BuildArgs(sourceURI string, p quality.Profile, outDir string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-rtsp_transport", "tcp",
		"-i", sourceURI,
		"-c:v", "libx264",
		"-preset", p.Preset,
		"-crf", strconv.Itoa(p.CRF),
		"-vf", fmt.Sprintf("scale=%d:%d", p.Width, p.Height),
		"-c:a", "aac",
		"-f", "hls",
		"-hls_time", strconv.Itoa(SegmentSeconds),
		"-hls_list_size", strconv.Itoa(ListSize),
		"-hls_flags", "delete_segments",
		"-hls_segment_filename", filepath.Join(outDir, SegmentPattern),
		filepath.Join(outDir, PlaylistName),
	}
}
