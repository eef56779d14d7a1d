// Package mediainfo probes clip durations before frame extraction. It
// shells out to mediainfo for the video stream duration and falls back to
// ffprobe when that fails, so the frame stage can derive an exact sampling
// rate for every clip.
package mediainfo
