package progress

import "github.com/schollz/progressbar/v3"

var Progress = progressCreate(-1, "") // init as spinner

func Spinner(desc string) {
	_ = Progress.Clear()
	Reset(-1, desc)
	_ = Progress.RenderBlank()
}

func Reset(max int, desc string) {
	Progress = progressCreate(max, desc)
}

func Add(n int) {
	_ = Progress.Add(n)
}

func Describe(desc string) {
	Progress.Describe(desc)
}

func Finish() {
	_ = Progress.Finish()
}

func progressCreate(max int, desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(max,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]/[reset]",
			SaucerHead:    "[green]/[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
