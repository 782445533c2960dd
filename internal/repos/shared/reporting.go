package shared

import (
	"fmt"
	"io"
	"os"

	"github.com/temirov/gitcaptain/internal/utils"
)

// Reporter prints the human-facing output of a run: summaries, plans and prompts for review.
type Reporter interface {
	Printf(format string, args ...any)
}

type writerReporter struct {
	writer io.Writer
}

// NewWriterReporter returns a Reporter over writer, flushing after every line. Nil or discarding writers fall back to stdout.
func NewWriterReporter(writer io.Writer) Reporter {
	if writer == nil || writer == io.Discard {
		writer = os.Stdout
	}
	return writerReporter{writer: utils.NewFlushingWriter(writer)}
}

func (reporter writerReporter) Printf(format string, args ...any) {
	fmt.Fprintf(reporter.writer, format, args...)
}
