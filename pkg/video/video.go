package video

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"

	cfg "github.com/Dennisjoch/frame-video-streamer/pkg/config"
	"github.com/Dennisjoch/frame-video-streamer/pkg/logger"
)

var log = logger.Log

// ErrSourceUnavailable means the path is missing or not decodable as video.
var ErrSourceUnavailable = errors.New("video source unavailable")

// Source decodes a video file into grayscale frames via an ffmpeg rawvideo
// pipe, emitting every stride-th frame to approximate the target rate.
// It holds the subprocess for the duration of iteration and is not
// restartable; Close releases it on every exit path.
type Source struct {
	path          string
	width, height int
	fps           float64
	stride        int

	cmd    *exec.Cmd
	stdout io.ReadCloser
	skip   []byte // scratch for decimated frames

	next    int // ordinal of the next source frame
	emitted int
	closed  bool
}

// Open probes the file and starts the decoder. The native rate falls back
// to 30 fps when the container does not report one.
func Open(ctx context.Context, path string, targetFPS int) (*Source, error) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnavailable, path)
	}

	width, height, fps, err := probe(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	if fps <= 0 {
		fps = cfg.DefaultSourceFPS
	}
	stride := Stride(fps, float64(targetFPS))
	log.Infof("Source video: %.2f FPS. Sending every %d. frame for a target of ~%d FPS", fps, stride, targetFPS)

	// decode straight to single-channel bytes on stdout
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", path,
		"-an",
		"-pix_fmt", "gray",
		"-c:v", "rawvideo",
		"-map", "0:v",
		"-loglevel", "error",
		"-f", "rawvideo", "-")
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}

	return &Source{
		path:   path,
		width:  width,
		height: height,
		fps:    fps,
		stride: stride,
		cmd:    cmd,
		stdout: stdout,
		skip:   make([]byte, width*height),
	}, nil
}

// Stride is the decimation interval max(1, round(native/target)). It
// approximates the target rate without resampling, so the achieved rate
// native/stride can deviate from the requested one.
func Stride(native, target float64) int {
	if target <= 0 {
		return 1
	}
	s := int(math.Round(native / target))
	if s < 1 {
		s = 1
	}
	return s
}

func (s *Source) FPS() float64 { return s.fps }

// AchievedFPS is the rate the decimation actually produces.
func (s *Source) AchievedFPS() float64 { return s.fps / float64(s.stride) }

// Next returns the next decimated frame. End of stream (or a truncated
// read) is io.EOF, not a failure.
func (s *Source) Next() (*Frame, error) {
	for {
		if s.next%s.stride != 0 {
			if _, err := io.ReadFull(s.stdout, s.skip); err != nil {
				return nil, io.EOF
			}
			s.next++
			continue
		}
		buf := make([]byte, s.width*s.height)
		if _, err := io.ReadFull(s.stdout, buf); err != nil {
			return nil, io.EOF
		}
		s.next++
		f := &Frame{Pix: buf, Width: s.width, Height: s.height, Index: s.emitted}
		s.emitted++
		return f, nil
	}
}

// Close releases the decoder subprocess. Safe to call more than once.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.stdout.Close()
	if s.cmd.Process != nil {
		_ = s.cmd.Process.Kill()
	}
	_ = s.cmd.Wait()
	log.Debugf("video source closed after %d frames", s.emitted)
	return nil
}

func probe(ctx context.Context, path string) (width, height int, fps float64, err error) {
	cmd := exec.CommandContext(ctx, "ffprobe", path,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams")
	out, err := cmd.Output()
	if err != nil {
		return 0, 0, 0, err
	}

	var info struct {
		Streams []struct {
			CodecType  string `json:"codec_type"`
			Width      int    `json:"width"`
			Height     int    `json:"height"`
			RFrameRate string `json:"r_frame_rate"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(out, &info); err != nil {
		return 0, 0, 0, err
	}
	for _, st := range info.Streams {
		if st.CodecType == "video" && st.Width > 0 && st.Height > 0 {
			return st.Width, st.Height, fpsFromRatio(st.RFrameRate), nil
		}
	}
	return 0, 0, 0, errors.New("no video stream found")
}

func fpsFromRatio(ratio string) float64 {
	parts := strings.Split(ratio, "/")
	if len(parts) != 2 {
		return 0
	}
	num, _ := strconv.Atoi(parts[0])
	den, _ := strconv.Atoi(parts[1])
	if den == 0 {
		den = 1
	}
	return float64(num) / float64(den)
}
