// Package ffmpeg wraps ffmpeg for fixed-count frame sampling. The sample
// rate is chosen per clip so exactly the configured number of frames is
// produced regardless of clip length.
package ffmpeg
