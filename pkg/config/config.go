package config

// NOTE: all pixel data is written left to right, top to bottom
const (
	// target display geometry of the device
	DefaultWidth  = 128
	DefaultHeight = 80

	// target send rate; the source decimation rounds to the nearest
	// reachable rate, so the achieved fps may differ
	DefaultFPS = 14

	// assumed when the container reports no frame rate
	DefaultSourceFPS = 30.0

	// frames buffered between decoder and sender
	QueueSize = 4

	// message tag the device-side sprite player listens on
	MsgImageSpriteBlock byte = 0x20

	// fixed grayscale palette, 2 bits per pixel on the wire
	PaletteColors = 4
)
