package utils

import (
	"io"
	"sync"
)

type flusher interface {
	Flush() error
}

type flushingWriter struct {
	mutex  sync.Mutex
	writer io.Writer
}

// NewFlushingWriter serializes writes to writer and flushes it after each one when it buffers output,
// so report lines reach the terminal before the next prompt. Wrapping twice returns the first wrapper.
func NewFlushingWriter(writer io.Writer) io.Writer {
	if writer == nil {
		return nil
	}
	if _, alreadyWrapped := writer.(*flushingWriter); alreadyWrapped {
		return writer
	}
	return &flushingWriter{writer: writer}
}

func (wrapper *flushingWriter) Write(data []byte) (int, error) {
	wrapper.mutex.Lock()
	defer wrapper.mutex.Unlock()

	bytesWritten, writeError := wrapper.writer.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}
	if bufferedWriter, buffers := wrapper.writer.(flusher); buffers {
		return bytesWritten, bufferedWriter.Flush()
	}
	return bytesWritten, nil
}
