package utils

import "io"

// flushableWriter describes writers that buffer output until flushed.
type flushableWriter interface {
	Flush() error
}

type flushingWriter struct {
	destination io.Writer
}

// NewFlushingWriter wraps the destination so that every write is flushed
// immediately when the destination supports flushing.
func NewFlushingWriter(destination io.Writer) io.Writer {
	return &flushingWriter{destination: destination}
}

func (writer *flushingWriter) Write(data []byte) (int, error) {
	bytesWritten, writeError := writer.destination.Write(data)
	if writeError != nil {
		return bytesWritten, writeError
	}
	if flushable, supportsFlushing := writer.destination.(flushableWriter); supportsFlushing {
		if flushError := flushable.Flush(); flushError != nil {
			return bytesWritten, flushError
		}
	}
	return bytesWritten, nil
}
