package audit

import "fmt"

// Logger builds lifecycle events and hands them to a Writer.
type Logger struct {
	w Writer
}

// NewLogger returns a Logger writing to w. A nil w disables auditing.
func NewLogger(w Writer) *Logger {
	if w == nil {
		w = NopWriter{}
	}
	return &Logger{w: w}
}

// Open returns a Logger for the file at path, or a no-op Logger when path is empty.
func Open(path string) (*Logger, error) {
	if path == "" {
		return NewLogger(nil), nil
	}
	w, err := NewFileWriter(path)
	if err != nil {
		return nil, err
	}
	return NewLogger(w), nil
}

// Close closes the underlying writer.
func (l *Logger) Close() error {
	return l.w.Close()
}

func (l *Logger) log(event *Event) error {
	if err := l.w.Write(event); err != nil {
		return fmt.Errorf("audit log failed: %w", err)
	}
	return nil
}

// CACreated logs the creation of a root CA.
func (l *Logger) CACreated(name, subject, algorithm string, days int, opErr error) error {
	return l.log(NewEvent(EventCACreated,
		Object{Type: "ca", Name: name, Subject: subject},
		Context{Algorithm: algorithm, Days: days}, opErr))
}

// CSRCreated logs the creation of a pending request.
func (l *Logger) CSRCreated(name, algorithm string, opErr error) error {
	return l.log(NewEvent(EventCSRCreated,
		Object{Type: "csr", Name: name},
		Context{Algorithm: algorithm}, opErr))
}

// CertIssued logs the signing of a request by a CA.
func (l *Logger) CertIssued(caName, name, serial, subject string, days int, opErr error) error {
	return l.log(NewEvent(EventCertIssued,
		Object{Type: "certificate", Name: name, Serial: serial, Subject: subject},
		Context{CA: caName, Days: days}, opErr))
}

// KeyArchived logs the move of a signed request's key into keys/.
func (l *Logger) KeyArchived(name, path string, opErr error) error {
	return l.log(NewEvent(EventKeyArchived, Object{Type: "key", Name: name, Path: path}, Context{}, opErr))
}

// SubCAPromoted logs the promotion of a signed request into a sub-CA.
func (l *Logger) SubCAPromoted(name, path string, opErr error) error {
	return l.log(NewEvent(EventSubCAPromoted, Object{Type: "ca", Name: name, Path: path}, Context{}, opErr))
}
