package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	cfg "github.com/Dennisjoch/frame-video-streamer/pkg/config"
	"github.com/Dennisjoch/frame-video-streamer/pkg/core"
	"github.com/Dennisjoch/frame-video-streamer/pkg/encoder"
	"github.com/Dennisjoch/frame-video-streamer/pkg/logger"
	"github.com/Dennisjoch/frame-video-streamer/pkg/transport"
	"github.com/Dennisjoch/frame-video-streamer/pkg/video"
)

var app = cli.NewApp()
var log = logger.Log

func init() {
	app.Name = "framestream"
	app.Usage = "Stream a video file to a wearable Frame display"
	app.UsageText = "framestream [options] video_file"
	app.HideVersion = true
	app.Flags = []cli.Flag{
		cli.IntFlag{
			Name:  "width",
			Value: cfg.DefaultWidth,
			Usage: "width to resize the video to",
		},
		cli.IntFlag{
			Name:  "height",
			Value: cfg.DefaultHeight,
			Usage: "height to resize the video to",
		},
		cli.IntFlag{
			Name:  "fps",
			Value: cfg.DefaultFPS,
			Usage: "target FPS for streaming",
		},
		cli.IntFlag{
			Name:  "line-height",
			Usage: "scanline group height per packet, 0 sends whole frames",
		},
		cli.BoolFlag{
			Name:  "adaptive",
			Usage: "derive the 4-color palette from the first frame instead of fixed grayscale",
		},
		cli.StringFlag{
			Name:  "addr",
			Usage: "TCP address of the device link",
		},
		cli.StringFlag{
			Name:  "out",
			Usage: "write the packet stream to a file instead of a link",
		},
	}
	app.Action = run
}

func run(c *cli.Context) error {
	path := c.Args().Get(0)
	if !isRegularFile(path) {
		fmt.Fprintf(os.Stderr, "Error: video file not found at %q\n", path)
		_ = cli.ShowAppHelp(c)
		os.Exit(1)
	}

	// ctrl-c is handled like a clean end of stream
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := video.Open(ctx, path, c.Int("fps"))
	if err != nil {
		return err
	}

	tr, err := newTransport(c)
	if err != nil {
		src.Close()
		return err
	}

	newEncoder := encoder.NewFrameEncoder
	if c.Bool("adaptive") {
		newEncoder = encoder.NewAdaptiveFrameEncoder
	}
	enc := newEncoder(c.Int("width"), c.Int("height"), c.Int("line-height"))

	return core.New(ctx, tr, enc).Stream(src)
}

func newTransport(c *cli.Context) (transport.Transport, error) {
	switch {
	case c.String("addr") != "":
		return transport.NewTCP(c.String("addr")), nil
	case c.String("out") != "":
		f, err := os.Create(c.String("out"))
		if err != nil {
			return nil, err
		}
		return transport.NewWriter(f), nil
	default:
		return transport.NewWriter(os.Stdout), nil
	}
}

func isRegularFile(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func main() {
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
